// Package pipeline runs one full pass of the monitor: fetch every store, fold the results
// into the history, persist it and notify about anything new.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"workshop-monitor/internal/chrono"
	"workshop-monitor/internal/history"
	"workshop-monitor/internal/notify"
	"workshop-monitor/internal/statestore"
	"workshop-monitor/internal/telemetry"
	libtelemetry "workshop-monitor/lib/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("workshop-monitor/pipeline")
var meter = otel.Meter("workshop-monitor/pipeline")
var newWorkshopsCounter, _ = meter.Int64Counter("pipeline.new_workshops")
var storeFailureCounter, _ = meter.Int64Counter("pipeline.store_failures")

// Fetcher returns the workshop titles currently offered for a store.
type Fetcher interface {
	FetchWorkshops(ctx context.Context, store string) ([]string, error)
}

type Options struct {
	// Stores are processed in this order.
	Stores  []string
	FormUrl string
}

type Pipeline struct {
	fetcher  Fetcher
	state    statestore.Store
	notifier notify.Notifier
	time     chrono.TimeAPI
	tel      telemetry.API
	opts     Options
}

func New(
	fetcher Fetcher,
	state statestore.Store,
	notifier notify.Notifier,
	timeAPI chrono.TimeAPI,
	tel telemetry.API,
	opts Options,
) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		state:    state,
		notifier: notifier,
		time:     timeAPI,
		tel:      telemetry.NewScopedAPI("pipeline", tel),
		opts:     opts,
	}
}

type StoreFailure struct {
	Store string
	Err   error
}

type Result struct {
	RunID string
	// NewTitles lists every title seen for the first time in this run, in discovery order.
	NewTitles []notify.NewTitle
	Failures  []StoreFailure
	// NotifyErr is set when the history was saved but the notification could not be delivered.
	NotifyErr error
}

func newRunID() string {
	return uuid.NewString()[:8]
}

// Run performs a single pass. Failures of individual stores are recorded in the result
// and do not stop the others, the returned error is only set when the history could not
// be loaded or saved.
func (p *Pipeline) Run(ctx context.Context) (result Result, err error) {
	result.RunID = newRunID()
	ctx = libtelemetry.WithAttrs(ctx, "run_id", result.RunID)

	ctx, span := tracer.Start(ctx, "Run")
	span.SetAttributes(attribute.String("run_id", result.RunID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	slog.InfoContext(ctx, "run started", "stores", p.opts.Stores)

	state, err := p.state.LoadOrCreate(ctx)
	if err != nil {
		p.tel.ReportBroken(ctx, "load-state", err)
		return result, fmt.Errorf("load state: %w", err)
	}

	for _, store := range p.opts.Stores {
		added, err := p.processStore(ctx, state, store)
		if err != nil {
			result.Failures = append(result.Failures, StoreFailure{Store: store, Err: err})
			continue
		}
		for _, title := range added {
			result.NewTitles = append(result.NewTitles, notify.NewTitle{Store: store, Title: title})
		}
	}

	state.MarkUpdated(p.time.Now())
	err = p.state.Save(ctx, state)
	if err != nil {
		p.tel.ReportBroken(ctx, "save-state", err)
		return result, fmt.Errorf("save state: %w", err)
	}

	p.tel.ReportCount(ctx, "new-workshops", int64(len(result.NewTitles)))
	newWorkshopsCounter.Add(ctx, int64(len(result.NewTitles)))

	if len(result.NewTitles) == 0 {
		slog.InfoContext(ctx, "no new workshops", "failures", len(result.Failures))
		return result, nil
	}

	slog.InfoContext(ctx, "detected new workshops", "count", len(result.NewTitles))
	subject, body := notify.Compose(result.NewTitles, p.opts.FormUrl)
	result.NotifyErr = p.notifier.Send(ctx, subject, body)
	if result.NotifyErr != nil {
		if !errors.Is(result.NotifyErr, notify.ErrNotifyFailed) {
			result.NotifyErr = fmt.Errorf("%w: %w", notify.ErrNotifyFailed, result.NotifyErr)
		}
		p.tel.ReportBroken(ctx, "notify", result.NotifyErr)
		return result, nil
	}
	slog.InfoContext(ctx, "notification sent", "count", len(result.NewTitles))
	return result, nil
}

func (p *Pipeline) processStore(ctx context.Context, state *history.WorkshopState, store string) (added []string, err error) {
	ctx = libtelemetry.WithAttrs(ctx, "store", store)
	ctx, span := tracer.Start(ctx, "processStore", trace.WithAttributes(attribute.String("store", store)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			storeFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("store", store)))
			p.tel.ReportBroken(ctx, "process-store", err, store)
		}
		span.End()
	}()

	slog.InfoContext(ctx, "fetching workshops")
	titles, err := p.fetcher.FetchWorkshops(ctx, store)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "scraped workshops", "count", len(titles))

	added = history.Reconcile(state.Bucket(store), titles, p.time.Now())
	return added, nil
}
