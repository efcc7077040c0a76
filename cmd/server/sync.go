package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/proddash/internal/core"
)

// syncAction runs one cycle and prints the resulting view. With --file the
// share link is not contacted.
func syncAction(c *cli.Context) error {
	mode, err := core.ParseMode(c.String("basis"), c.String("week"))
	if err != nil {
		return exitErr("%v", err)
	}

	a, err := build()
	if err != nil {
		return exitErr("failed to load configuration: %v", err)
	}

	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return exitErr("read %s: %v", path, err)
		}
		sum, err := a.parser.Parse(data, filepath.Base(path), a.selector())
		if err != nil {
			return syncFailed(err)
		}
		a.store.Publish(sum, data)
	} else if _, err := a.syncer.RunOnce(c.Context); err != nil {
		return syncFailed(err)
	}

	view, err := a.service.GetSummary(mode)
	if err != nil {
		return exitErr("%v", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

// syncFailed logs the technical error and exits with the coded user message.
func syncFailed(err error) error {
	ue := core.NewUserError(err)
	slog.Error("sync failed", "error", ue.Technical, "code", ue.User.Code)
	return cli.Exit(core.FormatUserError(ue), 1)
}
