// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

type SetBudget struct {
	cmdutil.ClientFlags
}

func (c *SetBudget) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-budget", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "set-budget", fset, cli.CmdFunc(c.run)
}

func (c *SetBudget) Purpose() string {
	return "Sets the maximum total spending budget"
}

func (c *SetBudget) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (budget amount) argument")
	}
	budget, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("could not parse budget amount %q: %w", args[0], err)
	}

	// Settings are saved whole; carry over the other fields.
	old, err := cmdutil.Post[api.GetSettingsResponse](ctx, &c.ClientFlags, api.GetSettingsPath, &api.GetSettingsRequest{})
	if err != nil {
		return err
	}

	req := &api.SetSettingsRequest{
		MaxBudget:      budget,
		RefreshMinutes: old.RefreshMinutes,
	}
	if _, err := cmdutil.Post[api.SetSettingsResponse](ctx, &c.ClientFlags, api.SetSettingsPath, req); err != nil {
		return err
	}
	fmt.Printf("max budget set to %s\n", budget.StringFixed(2))
	return nil
}

type SetInterval struct {
	cmdutil.ClientFlags
}

func (c *SetInterval) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-interval", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "set-interval", fset, cli.CmdFunc(c.run)
}

func (c *SetInterval) Purpose() string {
	return "Sets the price check interval in minutes"
}

func (c *SetInterval) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (minutes) argument")
	}
	var minutes int
	if _, err := fmt.Sscanf(args[0], "%d", &minutes); err != nil {
		return fmt.Errorf("could not parse minutes value %q: %w", args[0], err)
	}

	old, err := cmdutil.Post[api.GetSettingsResponse](ctx, &c.ClientFlags, api.GetSettingsPath, &api.GetSettingsRequest{})
	if err != nil {
		return err
	}

	req := &api.SetSettingsRequest{
		MaxBudget:      old.MaxBudget,
		RefreshMinutes: minutes,
	}
	if _, err := cmdutil.Post[api.SetSettingsResponse](ctx, &c.ClientFlags, api.SetSettingsPath, req); err != nil {
		return err
	}
	fmt.Printf("refresh interval set to %dm\n", minutes)
	return nil
}
