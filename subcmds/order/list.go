// Copyright (c) 2025 BVK Chaitanya

package order

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

type List struct {
	cmdutil.ClientFlags

	status string
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.status, "status", "", "select only PENDING or EXECUTED orders")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints all orders with their current status"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	req := &api.OrderListRequest{
		Status: c.status,
	}
	resp, err := cmdutil.Post[api.OrderListResponse](ctx, &c.ClientFlags, api.OrderListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "UID\tSTATUS\tTARGET\tAMOUNT\tCREATED\tEXECUTED\tREFERENCE\n")
	for _, order := range resp.Orders {
		executed := "-"
		if !order.FilledAt.IsZero() {
			executed = fmt.Sprintf("%s at %s", order.FilledAt.Format("2006-01-02 15:04:05"), order.ExecutedPrice)
		}
		ref := "-"
		if len(order.ReferenceID) != 0 {
			ref = order.ReferenceID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			order.UID, order.Status, order.TargetPrice, order.Amount,
			order.CreatedAt.Format("2006-01-02 15:04:05"), executed, ref)
	}
	return nil
}
