package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/scrimmage/discord-tracker-service/config"
)

const (
	ServiceName      = "discord-tracker-service"
	ServiceNamespace = "scrimmage"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Tracks Discord community activity and reports it to the rewards ledger",
		Version: version + " (" + commit + ", " + branch + ")",
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the event tracking pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			// Drain budget plus headroom for the sources and servers.
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.DrainTimeout+10*time.Second)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Watch pipeline backlog of a running instance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of the instance's ops server",
				Value: "http://127.0.0.1:3000",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.Context, c.String("addr"), c.Duration("interval"))
		},
	}
}
