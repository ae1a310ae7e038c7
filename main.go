// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/buybot/subcmds"
	"github.com/bvk/buybot/subcmds/db"
	"github.com/bvk/buybot/subcmds/order"
	"github.com/bvk/buybot/subcmds/setup"
	"github.com/visvasity/cli"
)

func main() {
	orderCmds := []cli.Command{
		new(order.Add),
		new(order.List),
		new(order.Remove),
	}

	monitorCmds := []cli.Command{
		new(subcmds.MonitorStart),
		new(subcmds.MonitorStop),
	}

	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	setupCmds := []cli.Command{
		new(setup.Bridge),
		new(setup.PushOver),
		new(setup.Telegram),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.SetBudget),
		new(subcmds.SetInterval),
		cli.NewGroup("order", "Manage purchase orders", orderCmds...),
		cli.NewGroup("monitor", "Control price monitoring", monitorCmds...),
		cli.NewGroup("db", "View/update database directly", dbCmds...),
		cli.NewGroup("setup", "Configure service credentials", setupCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
