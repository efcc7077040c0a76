package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/proddash/internal/summary"
)

func TestSyncFailed(t *testing.T) {
	err := syncFailed(&summary.SchemaError{File: "f.xlsx", Err: summary.ErrMissingColumn})

	var exit cli.ExitCoder
	if !errors.As(err, &exit) {
		t.Fatalf("syncFailed() = %T, want cli.ExitCoder", err)
	}
	if exit.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", exit.ExitCode())
	}
	if !strings.Contains(err.Error(), "(Code: SCH002)") {
		t.Errorf("Error() = %q, want SCH002 user message", err.Error())
	}
}
