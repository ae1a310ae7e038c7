// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/visvasity/topic"
)

// SendMessage pushes a notification over every configured alert channel.
// Missing channels are skipped silently.
func (s *Server) SendMessage(ctx context.Context, at time.Time, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.telegramClient != nil {
		if err := s.telegramClient.SendMessage(ctx, at, msg); err != nil {
			slog.Error("could not send telegram message (ignored)", "err", err)
		}
	}
	if s.pushoverClient != nil {
		if err := s.pushoverClient.SendMessage(ctx, at, msg); err != nil {
			slog.Error("could not send pushover message (ignored)", "err", err)
		}
	}
}

// frozen reports whether an alert with the given key was sent within the
// freeze interval, and refreshes the deadline otherwise.
func (s *Server) frozen(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.alertFreezeDeadlineMap[key]; ok {
		if now.Before(deadline) {
			return true
		}
		delete(s.alertFreezeDeadlineMap, key)
	}
	s.alertFreezeDeadlineMap[key] = now.Add(s.opts.AlertFreezeInterval)
	return false
}

// watchForAlerts turns monitor stops and completed purchases into user
// notifications. Repeated stop alerts for the same cause are frozen so that a
// stuck condition doesn't flood the alert channels.
func (s *Server) watchForAlerts(ctx context.Context) {
	statuses, err := s.monitor.StatusUpdates()
	if err != nil {
		slog.Error("could not subscribe to status updates", "err", err)
		return
	}
	defer statuses.Close()

	orders, err := s.book.Updates()
	if err != nil {
		slog.Error("could not subscribe to order updates", "err", err)
		return
	}
	defer orders.Close()

	statusCh, err := topic.ReceiveCh(statuses)
	if err != nil {
		slog.Error("could not open status updates channel", "err", err)
		return
	}
	ordersCh, err := topic.ReceiveCh(orders)
	if err != nil {
		slog.Error("could not open order updates channel", "err", err)
		return
	}

	numExecuted := -1
	for {
		select {
		case <-ctx.Done():
			return

		case status := <-statusCh:
			// Unattended stops are the ones worth waking the user for.
			if !strings.HasPrefix(status, "monitoring stopped:") {
				continue
			}
			if s.frozen("alerts/monitor-stop/" + status) {
				continue
			}
			s.SendMessage(ctx, time.Now(), "%s", status)

		case update := <-ordersCh:
			if numExecuted < 0 {
				numExecuted = update.NumExecuted
				continue
			}
			if n := update.NumExecuted - numExecuted; n > 0 {
				s.SendMessage(ctx, time.Now(), "purchased %d order(s); %d orders still pending", n, update.NumPending)
			}
			numExecuted = update.NumExecuted
		}
	}
}
