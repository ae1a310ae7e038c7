// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type MonitorStart struct {
	cmdutil.ClientFlags
}

func (c *MonitorStart) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("start", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "start", fset, cli.CmdFunc(c.run)
}

func (c *MonitorStart) Purpose() string {
	return "Starts monitoring the market price for purchases"
}

func (c *MonitorStart) Description() string {
	return `

Command "start" begins price monitoring. It is refused when the maximum
budget is not configured or when there are no pending orders.

`
}

func (c *MonitorStart) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if _, err := cmdutil.Post[api.MonitorStartResponse](ctx, &c.ClientFlags, api.MonitorStartPath, &api.MonitorStartRequest{}); err != nil {
		return err
	}
	fmt.Println("monitoring started")
	return nil
}

type MonitorStop struct {
	cmdutil.ClientFlags
}

func (c *MonitorStop) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("stop", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "stop", fset, cli.CmdFunc(c.run)
}

func (c *MonitorStop) Purpose() string {
	return "Stops monitoring the market price"
}

func (c *MonitorStop) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if _, err := cmdutil.Post[api.MonitorStopResponse](ctx, &c.ClientFlags, api.MonitorStopPath, &api.MonitorStopRequest{}); err != nil {
		return err
	}
	fmt.Println("monitoring stopped")
	return nil
}
