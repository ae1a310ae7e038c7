// Copyright (c) 2025 BVK Chaitanya

// Package subcmds implements the buybot command line subcommands.
package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) Purpose() string {
	return "Prints a summary of orders, budget and monitoring state"
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, &api.StatusRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	if resp.Running {
		fmt.Fprintf(tw, "Monitoring:\trunning\n")
	} else if len(resp.StopReason) != 0 {
		fmt.Fprintf(tw, "Monitoring:\tstopped (%s)\n", resp.StopReason)
	} else {
		fmt.Fprintf(tw, "Monitoring:\tstopped\n")
	}
	if resp.ExecutionInFlight {
		fmt.Fprintf(tw, "Execution:\tin progress\n")
	}
	fmt.Fprintf(tw, "Pending orders:\t%d\n", resp.NumPending)
	fmt.Fprintf(tw, "Executed orders:\t%d\n", resp.NumExecuted)
	fmt.Fprintf(tw, "Max budget:\t%s\n", resp.MaxBudget.StringFixed(2))
	fmt.Fprintf(tw, "Total spent:\t%s\n", resp.TotalSpent.StringFixed(2))
	fmt.Fprintf(tw, "Refresh interval:\t%dm\n", resp.RefreshMinutes)
	if !resp.LastPriceAt.IsZero() {
		fmt.Fprintf(tw, "Last price:\t%s at %s\n", resp.LastPrice, resp.LastPriceAt.Format("2006-01-02 15:04:05"))
	}
	if !resp.NextCheckAt.IsZero() {
		fmt.Fprintf(tw, "Next check:\t%s\n", resp.NextCheckAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
