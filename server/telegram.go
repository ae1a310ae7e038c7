// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/telegram"
	"github.com/visvasity/cli"
)

// AddTelegramCommand registers a chat command when the telegram channel is
// configured; it is a no-op otherwise.
func (s *Server) AddTelegramCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error {
	if s.telegramClient != nil {
		return s.telegramClient.AddCommand(ctx, name, purpose, handler)
	}
	return nil
}

func (s *Server) addTelegramCommands(ctx context.Context) error {
	if err := s.AddTelegramCommand(ctx, "status", "Prints purchase bot status", s.statusTelegramCmd); err != nil {
		return err
	}
	if err := s.AddTelegramCommand(ctx, "start", "Starts monitoring for purchases", s.startTelegramCmd); err != nil {
		return err
	}
	if err := s.AddTelegramCommand(ctx, "stop", "Stops monitoring for purchases", s.stopTelegramCmd); err != nil {
		return err
	}
	return nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)

	resp, err := s.doStatus(ctx, &api.StatusRequest{})
	if err != nil {
		return err
	}

	if resp.Running {
		fmt.Fprintln(stdout, "Monitoring: running")
	} else if len(resp.StopReason) != 0 {
		fmt.Fprintf(stdout, "Monitoring: stopped (%s)\n", resp.StopReason)
	} else {
		fmt.Fprintln(stdout, "Monitoring: stopped")
	}
	fmt.Fprintf(stdout, "Orders: %d pending, %d executed\n", resp.NumPending, resp.NumExecuted)
	fmt.Fprintf(stdout, "Budget: %s spent of %s\n", resp.TotalSpent.StringFixed(2), resp.MaxBudget.StringFixed(2))
	if !resp.LastPriceAt.IsZero() {
		fmt.Fprintf(stdout, "Last price: %s at %s\n", resp.LastPrice, resp.LastPriceAt.Format("2006-01-02 15:04:05"))
	}
	if !resp.NextCheckAt.IsZero() {
		fmt.Fprintf(stdout, "Next check: %s\n", resp.NextCheckAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (s *Server) startTelegramCmd(ctx context.Context, args []string) error {
	if _, err := s.doMonitorStart(ctx, &api.MonitorStartRequest{}); err != nil {
		return err
	}
	fmt.Fprintln(cli.Stdout(ctx), "monitoring started")
	return nil
}

func (s *Server) stopTelegramCmd(ctx context.Context, args []string) error {
	if _, err := s.doMonitorStop(ctx, &api.MonitorStopRequest{}); err != nil {
		return err
	}
	fmt.Fprintln(cli.Stdout(ctx), "monitoring stopped")
	return nil
}
