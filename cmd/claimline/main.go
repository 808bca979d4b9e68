package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/claimline/internal"
	pkgconfig "github.com/starford/claimline/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (a missing default file keeps the
// built-in defaults) and applies the global flags.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if p := cmd.String("claims-config"); p != "" {
		cfg.Claims.ConfigFile = p
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	if cmd.IsSet("log-format") {
		cfg.App.LogFormat = cmd.String("log-format")
	}
	return cfg, nil
}

// cliLogger writes to stderr so stdout stays clean for results.
func cliLogger(cfg *internal.Config) *slog.Logger {
	return internal.NewLogger(os.Stderr, cfg.App.LogLevel, cfg.App.LogFormat)
}

func run(ctx context.Context, cmd *cli.Command) error {
	if interactive() {
		return runWizard(ctx, cmd)
	}
	return serve(ctx, cmd)
}

func main() {
	cmd := &cli.Command{
		Name:    "claimline",
		Usage:   "Normalize medical claims JSON into interactive HTML timelines",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "claims-config",
				Usage:   "Path to a standalone JSON claims configuration",
				Sources: cli.EnvVars("CLAIMS_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text, json)",
			},
		},
		Commands: []*cli.Command{
			renderCommand(),
			batchCommand(),
			scanCommand(),
			exportCommand(),
			serveCommand(),
			mcpCommand(),
			historyCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
