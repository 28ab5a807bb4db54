package telemetry

import (
	"context"
	"sync"
)

// Report is a single call made to a RecordingAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
	Count  int64
}

// RecordingAPI keeps every report in memory so tests can assert on them.
type RecordingAPI struct {
	mu      sync.Mutex
	Reports []Report
}

func (r *RecordingAPI) add(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, report)
}

func (r *RecordingAPI) ReportBroken(_ context.Context, id string, params ...any) {
	r.add(Report{Kind: "broken", Id: id, Params: params})
}

func (r *RecordingAPI) ReportWarning(_ context.Context, id string, params ...any) {
	r.add(Report{Kind: "warning", Id: id, Params: params})
}

func (r *RecordingAPI) ReportDebug(_ context.Context, msg string, params ...any) {
	r.add(Report{Kind: "debug", Id: msg, Params: params})
}

func (r *RecordingAPI) ReportCount(_ context.Context, id string, count int64) {
	r.add(Report{Kind: "count", Id: id, Count: count})
}

// Ids returns the ids of all reports of the given kind in the order they were made.
func (r *RecordingAPI) Ids(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, report := range r.Reports {
		if report.Kind == kind {
			out = append(out, report.Id)
		}
	}
	return out
}
