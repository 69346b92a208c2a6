package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-resale/internal/app"
	_ "github.com/odyssey-erp/odyssey-resale/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}

func TestRunCommandRejectsUnknownCommands(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &app.Config{}
	require.Equal(t, 2, runCommand(context.Background(), cfg, logger, []string{"bogus"}))
	require.Equal(t, 2, runCommand(context.Background(), cfg, logger, []string{"reconcile", "--nope"}))
}
