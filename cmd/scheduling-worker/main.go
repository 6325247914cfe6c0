// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the scheduling worker. It answers scheduling requests over NATS,
// reconciles video provider webhooks and delivers meeting reminders.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "scheduling-worker",
		Usage: "Schedule meetings, reconcile video sessions and deliver reminders.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
			if c.Bool("debug") {
				if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
					return err
				}
			}
			logging.InitStructureLogConfig()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			scanCommand(),
			deadJobsCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.With(logging.ErrKey, err).Error("scheduling worker failed")
		os.Exit(1)
	}
}
