// Package navigator drives the workshop form: it finds the store control, selects a store
// and reads back the workshop options the form renders for it.
//
// Every step is an ordered list of strategies. The first strategy that produces a result
// wins, later ones only run when the earlier ones come up empty.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workshop-monitor/internal/browser"
	"workshop-monitor/internal/telemetry"
	"workshop-monitor/lib/textutil"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("workshop-monitor/navigator")

var (
	ErrControlNotFound = errors.New("store control not found")
	ErrStoreNotFound   = errors.New("store not available in form")
)

// StoreError is the error returned by FetchWorkshops, it names the store that failed.
type StoreError struct {
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store '%s': %v", e.Store, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

const (
	DefaultControlID         = "QR~QID18"
	DefaultControlLabel      = "Selecione a sua loja"
	DefaultPrimarySelector   = "ul.ChoiceStructure li.Selection span.LabelWrapper > label"
	DefaultSecondarySelector = "ul.ChoiceStructure li.Selection label"
	DefaultTimeout           = time.Second * 20
	DefaultPollInterval      = time.Millisecond * 250
)

type Options struct {
	ControlID         string
	ControlLabel      string
	PrimarySelector   string
	SecondarySelector string
	// Timeout is the wait budget of each polling strategy.
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ControlID == "" {
		o.ControlID = DefaultControlID
	}
	if o.ControlLabel == "" {
		o.ControlLabel = DefaultControlLabel
	}
	if o.PrimarySelector == "" {
		o.PrimarySelector = DefaultPrimarySelector
	}
	if o.SecondarySelector == "" {
		o.SecondarySelector = DefaultSecondarySelector
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

type Navigator struct {
	opener browser.Opener
	url    string
	opts   Options
	tel    telemetry.API

	controlStrategies []controlStrategy
	labelStrategies   []labelStrategy
}

func New(opener browser.Opener, formUrl string, opts Options, tel telemetry.API) *Navigator {
	n := &Navigator{
		opener: opener,
		url:    formUrl,
		opts:   opts.withDefaults(),
		tel:    telemetry.NewScopedAPI("navigator", tel),
	}
	n.controlStrategies = []controlStrategy{
		{name: "control-id", locate: n.controlByID},
		{name: "control-label", locate: n.controlByLabel},
	}
	n.labelStrategies = []labelStrategy{
		{name: "primary-selector", extract: n.visibleLabels},
		{name: "secondary-selector", extract: n.allLabels},
	}
	return n
}

// FetchWorkshops loads a fresh page, selects `store` and returns the workshop titles shown
// for it. The page is closed on every path.
func (n *Navigator) FetchWorkshops(ctx context.Context, store string) (titles []string, err error) {
	ctx, span := tracer.Start(ctx, "FetchWorkshops")
	span.SetAttributes(attribute.String("store", store))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	page, err := n.opener.Open(ctx, n.url)
	if err != nil {
		return nil, &StoreError{Store: store, Err: fmt.Errorf("open form: %w", err)}
	}
	defer func() {
		closeErr := page.Close()
		if closeErr != nil {
			n.tel.ReportWarning(ctx, "fetch-workshops-close", store, closeErr)
		}
	}()

	control, err := n.ResolveStoreControl(ctx, page)
	if err != nil {
		return nil, &StoreError{Store: store, Err: err}
	}
	err = n.SelectStore(ctx, control, store)
	if err != nil {
		return nil, &StoreError{Store: store, Err: err}
	}
	titles, err = n.ExtractOptionLabels(ctx, page)
	if err != nil {
		return nil, &StoreError{Store: store, Err: err}
	}

	n.tel.ReportDebug(ctx, "extracted workshops", store, len(titles))
	return titles, nil
}

// poll calls `fn` until it reports done, the wait budget runs out or ctx is done.
// It returns the last error produced by `fn`.
func poll(ctx context.Context, timeout, interval time.Duration, fn func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if done {
			return err
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return err
		case <-ticker.C:
		}
	}
}

func trimmedTexts(ctx context.Context, elements []browser.Element, onlyVisible bool) ([]string, error) {
	out := []string{}
	for _, el := range elements {
		if onlyVisible {
			visible, err := el.Visible(ctx)
			if err != nil {
				return nil, err
			}
			if !visible {
				continue
			}
		}
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, text)
	}
	return out, nil
}

// closestOption returns the option most similar to `want`, empty when there are no options.
func closestOption(want string, options []string) string {
	best := ""
	bestScore := -1.0
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			continue
		}
		score := matchr.JaroWinkler(textutil.FoldASCII(want), textutil.FoldASCII(opt), false)
		if score > bestScore {
			best = opt
			bestScore = score
		}
	}
	return best
}
