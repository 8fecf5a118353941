package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/daybook/internal"
	pkgconfig "github.com/starford/daybook/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}
	return cfg, nil
}

type runFunc func(ctx context.Context, opts ...internal.Option) error

func action(run runFunc, name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, internal.WithConfig(cfg)); err != nil {
			return fmt.Errorf("%s error: %w", name, err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "daybook",
		Usage: "Journal with Markdown entries, debounced saving, calendar context and assistant tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the journal server (API, events, widget hub, MCP over HTTP)",
				Action: action(internal.Run, "app run"),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the assistant tools on stdio",
				Action: action(internal.RunMCP, "mcp"),
			},
			{
				Name:   "edit",
				Usage:  "Edit journal entries through a local draft file",
				Action: action(internal.RunEditor, "editor"),
			},
			{
				Name:  "list",
				Usage: "List journal entries",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "calendar",
						Usage: "Also show today's events",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.RunList(ctx, cmd.Bool("calendar"), internal.WithConfig(cfg))
				},
			},
			{
				Name:   "convert",
				Usage:  "Convert an HTML fragment on stdin to Markdown",
				Action: action(internal.RunConvert, "convert"),
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
