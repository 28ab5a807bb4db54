package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{
		Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	ctx := WithAttrs(context.Background(), "run_id", "ab12cd34")
	ctx = WithAttrs(ctx, "store", "Loulé")
	logger.InfoContext(ctx, "fetching workshops")

	out := buf.String()
	require.Contains(t, out, "run_id=ab12cd34")
	require.Contains(t, out, "store=Loulé")
	require.Contains(t, out, "fetching workshops")

	buf.Reset()
	logger.With("component", "pipeline").InfoContext(context.Background(), "no attrs")
	require.Contains(t, buf.String(), "component=pipeline")
	require.NotContains(t, buf.String(), "run_id")
}
