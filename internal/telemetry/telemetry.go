package telemetry

import (
	"context"
	"fmt"
)

// API is an abstraction over logging/metrics.
// This allows for assertions and tests for working logging/metrics to exist.
//
// The context is passed along so that attributes attached to it (like the run id) end up
// on every report.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed.
	//
	// The `id` identifies the component that broke, not the specific piece of its implementation,
	// ex. `navigator.resolve-store-control`. Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	ReportBroken(ctx context.Context, id string, params ...any)

	// ReportWarning reports a scenario that does not necessarily indicate brokenness, but may be subject to
	// investigation, for example a fallback strategy being used because the page markup changed.
	ReportWarning(ctx context.Context, id string, params ...any)

	// ReportDebug reports some debug information that will be ignored in production
	ReportDebug(ctx context.Context, msg string, params ...any)

	// ReportCount reports the current count of a specific event at the current time, these counts should
	// not be summed but interpreted as points of data over time.
	ReportCount(ctx context.Context, id string, count int64)
}

// ScopedAPI is a telemetry API that attaches a namespace for a given API, kind of like creating a
// "sub" logger using things like log.New(), in which you can define the prefix for the logs.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(ctx context.Context, id string, params ...any) {
	s.inner.ReportBroken(ctx, fmt.Sprintf("%s.%s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(ctx context.Context, id string, params ...any) {
	s.inner.ReportWarning(ctx, fmt.Sprintf("%s.%s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(ctx context.Context, msg string, params ...any) {
	s.inner.ReportDebug(ctx, fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(ctx context.Context, id string, count int64) {
	s.inner.ReportCount(ctx, fmt.Sprintf("%s.%s", s.namespace, id), count)
}
