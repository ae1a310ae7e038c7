// Copyright (c) 2025 BVK Chaitanya

// Package server glues the order book, the monitor and the executor into the
// daemon service. It owns the background jobs, the JSON API handlers, the
// websocket update feed and the user notification channels.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/ctxutil"
	"github.com/bvk/buybot/executor"
	"github.com/bvk/buybot/httputil"
	"github.com/bvk/buybot/job"
	"github.com/bvk/buybot/monitor"
	"github.com/bvk/buybot/pushover"
	"github.com/bvk/buybot/telegram"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv"
)

// MonitorJobUID is the fixed uid for the singleton monitor job.
const MonitorJobUID = "monitor"

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	db kv.Database

	book    *book.Book
	driver  venue.Driver
	exec    *executor.Executor
	monitor *monitor.Monitor
	runner  *job.Runner

	hub *hub

	telegramClient *telegram.Client
	pushoverClient *pushover.Client

	mu sync.Mutex

	// alertFreezeDeadlineMap suppresses repeated alerts for the same cause
	// until the deadline.
	alertFreezeDeadlineMap map[string]time.Time
}

// New creates the daemon service over an open database and a venue driver.
// Recovers incomplete execution progress from a previous crash and resumes
// the monitor job when it was running before shutdown.
func New(ctx context.Context, db kv.Database, driver venue.Driver, secrets *Secrets, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = new(Secrets)
	}

	s := &Server{
		opts:                   *opts,
		db:                     db,
		driver:                 driver,
		runner:                 job.NewRunner(db),
		hub:                    newHub(),
		alertFreezeDeadlineMap: make(map[string]time.Time),
	}
	defer func() {
		if status != nil {
			s.Close()
		}
	}()

	if progress, err := executor.Recover(ctx, db); err != nil {
		return nil, fmt.Errorf("could not recover executor state: %w", err)
	} else if progress != nil {
		slog.WarnContext(ctx, "discarded incomplete execution from previous run", "stage", progress.Stage, "orders", len(progress.OrderIDs))
	}

	s.book = book.New(db)
	s.exec = executor.New(db, s.book, driver, nil)
	s.monitor = monitor.New(db, s.book, s.exec, driver, monitor.NewTimerScheduler())

	if secrets.Pushover != nil {
		client, err := pushover.New(secrets.Pushover)
		if err != nil {
			return nil, fmt.Errorf("could not create pushover client: %w", err)
		}
		s.pushoverClient = client
	}
	if secrets.Telegram != nil {
		client, err := telegram.New(ctx, db, secrets.Telegram)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram client: %w", err)
		}
		s.telegramClient = client
		if err := s.addTelegramCommands(ctx); err != nil {
			return nil, fmt.Errorf("could not register telegram commands: %w", err)
		}
	}

	if err := s.initMonitorJob(ctx); err != nil {
		return nil, err
	}

	s.cg.Go(s.hub.run)
	s.cg.Go(s.feedUpdates)
	s.cg.Go(s.watchForAlerts)
	return s, nil
}

// initMonitorJob makes sure the monitor job record exists and resumes it when
// the previous run was stopped while the job was still running.
func (s *Server) initMonitorJob(ctx context.Context) error {
	jd, err := s.runner.Get(ctx, MonitorJobUID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not load monitor job: %w", err)
		}
		if err := s.runner.Add(ctx, MonitorJobUID, "Monitor"); err != nil {
			return fmt.Errorf("could not create monitor job: %w", err)
		}
		return nil
	}

	if jd.State == job.RUNNING && !s.opts.NoResume {
		if _, err := s.runner.Resume(ctx, MonitorJobUID, s.monitor.Run, s.cg.Context()); err != nil {
			return fmt.Errorf("could not resume monitor job: %w", err)
		}
		slog.InfoContext(ctx, "monitor job resumed from previous run")
	}
	return nil
}

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.runner.PauseAll(ctx); err != nil {
		slog.Error("could not pause all jobs (ignored)", "err", err)
	}
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	// Stop the subscriber goroutines before closing the topics they read.
	s.cg.Close()
	if s.monitor != nil {
		s.monitor.Close()
	}
	if s.book != nil {
		s.book.Close()
	}
	return nil
}

// HandlerMap returns the daemon's http endpoints.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.OrderAddPath:    httputil.PostJSONHandler(s.doOrderAdd),
		api.OrderRemovePath: httputil.PostJSONHandler(s.doOrderRemove),
		api.OrderListPath:   httputil.PostJSONHandler(s.doOrderList),

		api.MonitorStartPath: httputil.PostJSONHandler(s.doMonitorStart),
		api.MonitorStopPath:  httputil.PostJSONHandler(s.doMonitorStop),

		api.GetSettingsPath: httputil.PostJSONHandler(s.doGetSettings),
		api.SetSettingsPath: httputil.PostJSONHandler(s.doSetSettings),

		api.StatusPath: httputil.PostJSONHandler(s.doStatus),

		"/updates": http.HandlerFunc(s.hub.handleWebsocket),
	}
}
