package navigator

import (
	"context"
	"errors"

	"workshop-monitor/internal/browser"
)

type labelStrategy struct {
	name    string
	extract func(ctx context.Context, page browser.Page) ([]string, error)
}

// visibleLabels waits for at least one visible match of the primary selector, then
// returns the texts of the visible matches. Elements that error while being read (ex. they
// were swapped out by a re-render) only mean the list is not ready yet. Running out of time
// yields nothing so the next strategy gets a turn.
func (n *Navigator) visibleLabels(ctx context.Context, page browser.Page) ([]string, error) {
	var labels []string
	var queryErr error
	err := poll(ctx, n.opts.Timeout, n.opts.PollInterval, func(ctx context.Context) (bool, error) {
		elements, err := page.QueryAll(ctx, n.opts.PrimarySelector)
		if err != nil {
			queryErr = err
			return true, err
		}
		texts, err := trimmedTexts(ctx, elements, true)
		if err != nil {
			n.tel.ReportDebug(ctx, "option labels not ready", err)
			return false, err
		}
		labels = texts
		return len(texts) > 0, nil
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if queryErr != nil {
		return nil, queryErr
	}
	if len(labels) == 0 {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			n.tel.ReportWarning(ctx, "extract-option-labels", "primary selector never became readable", err)
		}
		return nil, nil
	}
	return labels, nil
}

// allLabels reads the secondary selector once, visible or not.
func (n *Navigator) allLabels(ctx context.Context, page browser.Page) ([]string, error) {
	elements, err := page.QueryAll(ctx, n.opts.SecondarySelector)
	if err != nil {
		return nil, err
	}
	return trimmedTexts(ctx, elements, false)
}

// ExtractOptionLabels returns the workshop titles rendered for the selected store. The
// first strategy with a non-empty result is used as is, an empty slice means no
// strategy found anything.
func (n *Navigator) ExtractOptionLabels(ctx context.Context, page browser.Page) ([]string, error) {
	for i, strategy := range n.labelStrategies {
		labels, err := strategy.extract(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(labels) == 0 {
			continue
		}
		if i > 0 {
			n.tel.ReportWarning(ctx, "extract-option-labels", "fallback strategy used", strategy.name, len(labels))
		}
		return labels, nil
	}
	n.tel.ReportDebug(ctx, "no option labels found")
	return []string{}, nil
}
