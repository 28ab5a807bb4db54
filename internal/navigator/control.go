package navigator

import (
	"context"
	"errors"
	"fmt"

	"workshop-monitor/internal/browser"
	"workshop-monitor/lib/textutil"
)

type controlStrategy struct {
	name   string
	locate func(ctx context.Context, page browser.Page) (browser.Element, error)
}

func (n *Navigator) controlByID(ctx context.Context, page browser.Page) (browser.Element, error) {
	return page.ElementByID(ctx, n.opts.ControlID)
}

func (n *Navigator) controlByLabel(ctx context.Context, page browser.Page) (browser.Element, error) {
	return page.SelectAfterLabel(ctx, n.opts.ControlLabel)
}

// ResolveStoreControl locates the store picker and clicks it. Each strategy is polled for
// up to the configured timeout before the next one is tried.
func (n *Navigator) ResolveStoreControl(ctx context.Context, page browser.Page) (browser.Element, error) {
	var errs []error
	for i, strategy := range n.controlStrategies {
		var control browser.Element
		err := poll(ctx, n.opts.Timeout, n.opts.PollInterval, func(ctx context.Context) (bool, error) {
			el, err := strategy.locate(ctx, page)
			if errors.Is(err, browser.ErrNotFound) {
				return false, err
			}
			if err != nil {
				return true, err
			}
			control = el
			return true, nil
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
			continue
		}

		if i > 0 {
			n.tel.ReportWarning(ctx, "resolve-store-control", "fallback strategy used", strategy.name)
		}
		err = control.Click(ctx)
		if err != nil {
			return nil, fmt.Errorf("click store control: %w", err)
		}
		return control, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrControlNotFound, errors.Join(errs...))
}

// storeCandidates returns the texts to try when selecting `store`: the name as configured
// and the name with its diacritics removed.
func storeCandidates(store string) []string {
	store = textutil.NormalizeSpace(store)
	folded := textutil.FoldASCII(store)
	if folded == store {
		return []string{store}
	}
	return []string{store, folded}
}

// SelectStore selects the option whose visible text is `store`, falling back to the
// ASCII folded spelling.
func (n *Navigator) SelectStore(ctx context.Context, control browser.Element, store string) error {
	candidates := storeCandidates(store)
	for i, candidate := range candidates {
		err := control.SelectByText(ctx, candidate)
		if errors.Is(err, browser.ErrNoSuchOption) {
			continue
		}
		if err != nil {
			return fmt.Errorf("select store: %w", err)
		}
		if i > 0 {
			n.tel.ReportWarning(ctx, "select-store", "selected store using folded name", store, candidate)
		}
		return nil
	}

	options, err := control.OptionTexts(ctx)
	if err != nil {
		return fmt.Errorf("%w: tried %q", ErrStoreNotFound, candidates)
	}
	closest := closestOption(store, options)
	if closest == "" {
		return fmt.Errorf("%w: tried %q, the control has no options", ErrStoreNotFound, candidates)
	}
	return fmt.Errorf("%w: tried %q, closest option is '%s'", ErrStoreNotFound, candidates, closest)
}
