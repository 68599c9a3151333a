package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/snapfeed/cli/render"
	"github.com/justapithecus/snapfeed/cli/tui"
	"github.com/justapithecus/snapfeed/status"
)

const defaultStatusAddr = "127.0.0.1:8080"

// WatchCommand returns the watch command, a live view of a running agent's
// status endpoint.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Show live counters from a running agent's status endpoint",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Status endpoint address (default: status.listen from config, else " + defaultStatusAddr + ")",
				EnvVars: []string{"SNAPFEED_STATUS_ADDR"},
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Usage: "Refresh interval",
				Value: 2 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Print the current counters once and exit",
			},
		}, ReadOnlyFlags()...),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	addr := c.String("addr")
	if addr == "" {
		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		addr = statusAddr(cfg.Status.Listen)
	}

	client, err := status.NewClient(addr, status.DefaultFetchTimeout)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if c.Bool("once") || c.IsSet("format") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		stats, err := client.Stats(ctx)
		if err != nil {
			return cli.Exit(err.Error(), exitSetupFailure)
		}
		return r.Render(stats)
	}

	if err := tui.RunWatch(ctx, client.Stats, c.Duration("refresh")); err != nil {
		return cli.Exit(err.Error(), exitSetupFailure)
	}
	return nil
}

// statusAddr turns a listen address into a dialable one.
func statusAddr(listen string) string {
	switch {
	case listen == "":
		return defaultStatusAddr
	case strings.HasPrefix(listen, ":"):
		return "127.0.0.1" + listen
	case strings.HasPrefix(listen, "0.0.0.0:"):
		return "127.0.0.1" + strings.TrimPrefix(listen, "0.0.0.0")
	default:
		return listen
	}
}
