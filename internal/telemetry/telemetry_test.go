package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &RecordingAPI{}
	scoped := NewScopedAPI("navigator", rec)
	ctx := context.Background()

	scoped.ReportWarning(ctx, "extract-option-labels", "fallback")
	scoped.ReportBroken(ctx, "resolve-store-control", errors.New("timeout"))
	scoped.ReportCount(ctx, "labels", 3)
	scoped.ReportDebug(ctx, "selecting store")

	require.Equal(t, []string{"navigator.extract-option-labels"}, rec.Ids("warning"))
	require.Equal(t, []string{"navigator.resolve-store-control"}, rec.Ids("broken"))
	require.Equal(t, []string{"navigator.labels"}, rec.Ids("count"))
	require.Equal(t, []string{"navigator: selecting store"}, rec.Ids("debug"))
	require.EqualValues(t, 3, rec.Reports[2].Count)
}

func TestSlogAPI(t *testing.T) {
	var buf bytes.Buffer
	api := NewSlogAPI(slog.New(slog.NewTextHandler(&buf, nil)))

	api.ReportBroken(context.Background(), "pipeline.fetch", errors.New("control not found"), "Loulé")
	out := buf.String()
	require.Contains(t, out, "id=pipeline.fetch")
	require.Contains(t, out, `err="control not found"`)
	require.Contains(t, out, "params.1=Loulé")
}
