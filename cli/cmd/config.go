package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/snapfeed/cli/config"
	"github.com/justapithecus/snapfeed/cli/render"
)

// ConfigCommand returns the config command, which prints the effective
// configuration with secrets redacted.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the effective configuration (account key redacted)",
		Flags: append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), exitConfigError)
			}

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), exitConfigError)
			}

			return r.Render(cfg.Effective().Redacted())
		},
	}
}

// loadConfig loads and validates path. An empty path yields a zero Config.
func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
