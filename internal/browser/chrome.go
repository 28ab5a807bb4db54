package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless bool
	// ExecPath points at an alternate chrome/chromium binary, empty means the one chromedp finds.
	ExecPath string
	// RemoteURL connects to an already running browser (its devtools websocket url) instead of
	// launching one.
	RemoteURL string
	// ProfileRoot is where the disposable per-session profile directories are created,
	// empty means the system temp dir.
	ProfileRoot string
}

// Chrome launches a fresh browser with its own throwaway profile for every page it opens.
type Chrome struct {
	opts ChromeOptions

	mu       sync.Mutex
	profiles map[string]struct{}
}

func NewChrome(opts ChromeOptions) *Chrome {
	return &Chrome{opts: opts, profiles: map[string]struct{}{}}
}

func (c *Chrome) trackProfile(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[dir] = struct{}{}
}

func (c *Chrome) releaseProfile(dir string) error {
	c.mu.Lock()
	delete(c.profiles, dir)
	c.mu.Unlock()
	return os.RemoveAll(dir)
}

// Cleanup removes every profile directory that is still around, it is meant to be
// called once at process shutdown.
func (c *Chrome) Cleanup() error {
	c.mu.Lock()
	dirs := make([]string, 0, len(c.profiles))
	for dir := range c.profiles {
		dirs = append(dirs, dir)
	}
	c.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		slog.Debug("removing leftover browser profile", "dir", dir)
		errs = append(errs, c.releaseProfile(dir))
	}
	return errors.Join(errs...)
}

func (c *Chrome) allocatorOptions(profile string) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserDataDir(profile),
	)
	if c.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	return opts
}

func (c *Chrome) Open(ctx context.Context, url string) (Page, error) {
	ctx, span := tracer.Start(ctx, "Chrome.Open")
	defer span.End()

	p := &chromePage{owner: c}

	// the browser lives until Close, not until the caller's context is done
	var allocCtx context.Context
	if c.opts.RemoteURL != "" {
		allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.opts.RemoteURL)
	} else {
		profile, err := os.MkdirTemp(c.opts.ProfileRoot, "workshop-monitor-profile-")
		if err != nil {
			return nil, fmt.Errorf("failed to create browser profile: %w", err)
		}
		c.trackProfile(profile)
		p.profile = profile
		allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), c.allocatorOptions(profile)...)
	}

	p.tabCtx, p.tabCancel = chromedp.NewContext(
		allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			slog.Debug("chromedp: "+format, args...)
		}),
	)

	// the first Run starts the browser and binds it to the context it is given,
	// so it has to be the long lived tab context.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(p.tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		p.Close()
		return nil, ctx.Err()
	}

	err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	return p, nil
}

type chromePage struct {
	owner       *Chrome
	profile     string
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// run executes actions on the tab, bounded by the deadline and cancellation of ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) eval(ctx context.Context, body string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script(body), out))
}

func (p *chromePage) ElementByID(ctx context.Context, id string) (Element, error) {
	var ref string
	err := p.eval(ctx, fmt.Sprintf(
		`const el = document.getElementById(%s); return el ? ref(el) : "";`,
		jsString(id),
	), &ref)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return chromeElement{page: p, ref: ref}, nil
}

func (p *chromePage) SelectAfterLabel(ctx context.Context, phrase string) (Element, error) {
	var ref string
	err := p.eval(ctx, fmt.Sprintf(`
		const phrase = norm(%s);
		const labels = Array.from(document.querySelectorAll("label"))
			.filter((l) => norm(l.textContent).includes(phrase));
		for (const label of labels) {
			for (const s of document.querySelectorAll("select")) {
				const following = label.compareDocumentPosition(s) & Node.DOCUMENT_POSITION_FOLLOWING;
				if (following && !label.contains(s)) {
					return ref(s);
				}
			}
		}
		return "";`,
		jsString(phrase),
	), &ref)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, fmt.Errorf("select after label %q: %w", phrase, ErrNotFound)
	}
	return chromeElement{page: p, ref: ref}, nil
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var refs []string
	err := p.eval(ctx, fmt.Sprintf(
		`return Array.from(document.querySelectorAll(%s)).map(ref);`,
		jsString(selector),
	), &refs)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(refs))
	for i, r := range refs {
		out[i] = chromeElement{page: p, ref: r}
	}
	return out, nil
}

// Close shuts the browser down and removes the session profile, it is safe to call more than once.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		if p.tabCtx != nil {
			err := chromedp.Cancel(p.tabCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Debug("failed to close browser gracefully", "err", err)
			}
			p.tabCancel()
		}
		if p.allocCancel != nil {
			p.allocCancel()
		}
		if p.profile != "" {
			p.closeErr = p.owner.releaseProfile(p.profile)
		}
	})
	return p.closeErr
}

type chromeElement struct {
	page *chromePage
	ref  string
}

const staleMarker = "workshop-monitor: stale element"

func (e chromeElement) eval(ctx context.Context, body string, out any) error {
	err := e.page.eval(ctx, fmt.Sprintf(
		`const el = get(%s); if (!el) { throw new Error(%s); } %s`,
		jsString(e.ref), jsString(staleMarker), body,
	), out)
	if err != nil && strings.Contains(err.Error(), staleMarker) {
		return fmt.Errorf("%w: ref %s", ErrStale, e.ref)
	}
	return err
}

func (e chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.eval(ctx, `return el.innerText || el.textContent || "";`, &text)
	return text, err
}

func (e chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.eval(ctx, `
		const style = window.getComputedStyle(el);
		return style.display !== "none" &&
			style.visibility !== "hidden" &&
			style.opacity !== "0" &&
			el.getClientRects().length > 0;`,
		&visible,
	)
	return visible, err
}

func (e chromeElement) Click(ctx context.Context) error {
	var ok bool
	return e.eval(ctx, `el.click(); return true;`, &ok)
}

func (e chromeElement) SelectByText(ctx context.Context, text string) error {
	var result string
	err := e.eval(ctx, fmt.Sprintf(`
		if (el.tagName !== "SELECT") {
			return "not-select";
		}
		const want = norm(%s);
		const option = Array.from(el.options).find((o) => norm(o.text) === want);
		if (!option) {
			return "no-option";
		}
		el.value = option.value;
		option.selected = true;
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return "ok";`,
		jsString(text),
	), &result)
	if err != nil {
		return err
	}
	switch result {
	case "ok":
		return nil
	case "not-select":
		return ErrNotSelect
	default:
		return fmt.Errorf("%q: %w", text, ErrNoSuchOption)
	}
}

func (e chromeElement) OptionTexts(ctx context.Context) ([]string, error) {
	var result struct {
		Select bool     `json:"select"`
		Texts  []string `json:"texts"`
	}
	err := e.eval(ctx, `
		if (el.tagName !== "SELECT") {
			return { select: false, texts: [] };
		}
		return { select: true, texts: Array.from(el.options).map((o) => norm(o.text)) };`,
		&result,
	)
	if err != nil {
		return nil, err
	}
	if !result.Select {
		return nil, ErrNotSelect
	}
	return result.Texts, nil
}

// elements found through the page are tagged with a ref attribute so later calls can find
// them again without holding on to remote object handles.
const prelude = `
const refAttr = "data-workshop-monitor-ref";
const norm = (s) => (s || "").replace(/\s+/g, " ").trim();
const ref = (el) => {
	if (!el.hasAttribute(refAttr)) {
		window.__workshopMonitorRef = (window.__workshopMonitorRef || 0) + 1;
		el.setAttribute(refAttr, String(window.__workshopMonitorRef));
	}
	return el.getAttribute(refAttr);
};
const get = (r) => document.querySelector("[" + refAttr + "=\"" + r + "\"]");
`

func script(body string) string {
	return "(() => {" + prelude + body + "})()"
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
