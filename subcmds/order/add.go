// Copyright (c) 2025 BVK Chaitanya

// Package order implements subcommands to manage purchase orders.
package order

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

type Add struct {
	cmdutil.ClientFlags

	targetPrice float64
	amount      float64
}

func (c *Add) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Float64Var(&c.targetPrice, "target-price", 0, "price at or below which the order becomes executable")
	fset.Float64Var(&c.amount, "amount", 0, "purchase amount in the quote currency")
	return "add", fset, cli.CmdFunc(c.run)
}

func (c *Add) Purpose() string {
	return "Adds a new pending purchase order"
}

func (c *Add) Description() string {
	return `

Command "add" creates a pending order that purchases the given amount when the
market price drops to the target price or below. The minimum purchase amount
is 25.

  $ buybot order add --target-price=3.10 --amount=100

`
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if c.targetPrice <= 0 {
		return fmt.Errorf("target-price flag is required and must be positive")
	}
	if c.amount <= 0 {
		return fmt.Errorf("amount flag is required and must be positive")
	}

	req := &api.OrderAddRequest{
		TargetPrice: decimal.NewFromFloat(c.targetPrice),
		Amount:      decimal.NewFromFloat(c.amount),
	}
	resp, err := cmdutil.Post[api.OrderAddResponse](ctx, &c.ClientFlags, api.OrderAddPath, req)
	if err != nil {
		return err
	}
	fmt.Println(resp.UID)
	return nil
}
