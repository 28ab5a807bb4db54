package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAPI implements API using the log/slog package.
type SlogAPI struct {
	logger *slog.Logger
}

// NewSlogAPI creates a SlogAPI, a nil logger means slog.Default().
func NewSlogAPI(logger *slog.Logger) SlogAPI {
	return SlogAPI{logger: logger}
}

func (s SlogAPI) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func formatParams(out []any, params []any) []any {
	for i, p := range params {
		if err, ok := p.(error); ok {
			out = append(out, "err", err)
			continue
		}
		out = append(out, fmt.Sprintf("params.%d", i), p)
	}
	return out
}

func (s SlogAPI) ReportBroken(ctx context.Context, id string, params ...any) {
	s.log().ErrorContext(ctx, "broken component", formatParams([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportWarning(ctx context.Context, id string, params ...any) {
	s.log().WarnContext(ctx, "warning", formatParams([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportDebug(ctx context.Context, message string, params ...any) {
	s.log().DebugContext(ctx, message, formatParams(nil, params)...)
}

func (s SlogAPI) ReportCount(ctx context.Context, id string, count int64) {
	s.log().InfoContext(ctx, "count", "id", id, "n", count)
}
