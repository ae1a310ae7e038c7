// Copyright (c) 2025 BVK Chaitanya

package order

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Remove struct {
	cmdutil.ClientFlags
}

func (c *Remove) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("remove", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "remove", fset, cli.CmdFunc(c.run)
}

func (c *Remove) Purpose() string {
	return "Removes a pending purchase order"
}

func (c *Remove) Description() string {
	return `

Command "remove" deletes a pending order. Executed orders cannot be removed;
removing an unknown or already-executed order is not an error.

`
}

func (c *Remove) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (order uid) argument")
	}

	req := &api.OrderRemoveRequest{
		UID: args[0],
	}
	if _, err := cmdutil.Post[api.OrderRemoveResponse](ctx, &c.ClientFlags, api.OrderRemovePath, req); err != nil {
		return err
	}
	return nil
}
