package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/proddash/internal/config"
	"github.com/JonMunkholm/proddash/internal/core"
	"github.com/JonMunkholm/proddash/internal/fetch"
	"github.com/JonMunkholm/proddash/internal/logging"
	"github.com/JonMunkholm/proddash/internal/snapshot"
	"github.com/JonMunkholm/proddash/internal/summary"
)

func main() {
	app := &cli.App{
		Name:  "server",
		Usage: "production schedule dashboard backed by a shared workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before configuration (overrides existing env vars)",
			},
		},
		Before: loadEnvFile,
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the sync scheduler",
				Action: serveAction,
			},
			{
				Name:  "sync",
				Usage: "run one sync cycle (or parse a local file) and print the summary as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "parse this local workbook instead of fetching the share link"},
					&cli.StringFlag{Name: "basis", Value: "quantity", Usage: "quantity or style_count"},
					&cli.StringFlag{Name: "week", Value: "current", Usage: "current or next"},
				},
				Action: syncAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("exit", "error", err)
		os.Exit(1)
	}
}

func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if err := godotenv.Overload(path); err != nil {
		slog.Debug("no .env file loaded, using environment variables", "path", path)
		return nil
	}
	slog.Info("loaded .env file (overwriting existing env vars)", "path", path)
	return nil
}

// app bundles the components shared by the commands.
type app struct {
	cfg     *config.Config
	store   *snapshot.Store
	parser  *summary.Parser
	syncer  *core.Syncer
	service *core.Service
}

func build() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	fetcher := fetch.New(fetch.Config{
		Timeout:     cfg.Fetch.Timeout,
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BaseBackoff: cfg.Fetch.BaseBackoff,
		MaxBackoff:  cfg.Fetch.MaxBackoff,
		MaxBytes:    cfg.Fetch.MaxBytes,
		UserAgent:   cfg.Fetch.UserAgent,
		Logger:      logging.Component("fetch"),
	})
	parser := summary.NewParser(summary.Options{CurrentWeek: cfg.Sync.CurrentWeek})
	store := snapshot.New()

	syncer := core.NewSyncer(core.SyncConfig{
		ShareURL: cfg.Sync.FileURL,
		FileName: cfg.Sync.FileName,
		Selector: summary.NewSelector(cfg.Sync.QuantitySheet, cfg.Sync.StyleSheet),
		Interval: cfg.Sync.Interval(),
	}, fetcher, parser, store)

	return &app{
		cfg:     cfg,
		store:   store,
		parser:  parser,
		syncer:  syncer,
		service: core.NewService(store, syncer),
	}, nil
}

func (a *app) selector() summary.Selector {
	return summary.NewSelector(a.cfg.Sync.QuantitySheet, a.cfg.Sync.StyleSheet)
}

func exitErr(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 1)
}
