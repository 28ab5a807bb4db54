package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"workshop-monitor/lib/restyutil"
	"workshop-monitor/lib/textutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var tracer = otel.Tracer("workshop-monitor/browser")

type StaticOptions struct {
	Timeout time.Duration
	// Output receives a dump of every fetched page, it can be nil.
	Output restyutil.InstrumentOutput
}

// Static loads pages with a plain http client and inspects the server rendered markup
// with goquery. No script runs, so it only works for forms whose options are present in
// the initial document (and for local file:// fixtures).
type Static struct {
	client *resty.Client
}

func NewStatic(opts StaticOptions) (*Static, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetTimeout(opts.Timeout)
	restyutil.InstrumentClient(client, tracer, opts.Output)

	return &Static{client: client}, nil
}

func (s *Static) Open(ctx context.Context, rawUrl string) (Page, error) {
	ctx, span := tracer.Start(ctx, "Static.Open")
	defer span.End()

	link, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch link.Scheme {
	case "file", "":
		body, err = os.ReadFile(link.Path)
		if err != nil {
			return nil, err
		}
	default:
		res, err := s.client.R().
			SetContext(ctx).
			Get(rawUrl)
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("fetch %s: unexpected status %s", rawUrl, res.Status())
		}
		body = res.Body()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &staticPage{doc: doc}, nil
}

type staticPage struct {
	doc *goquery.Document
}

func (p *staticPage) ElementByID(_ context.Context, id string) (Element, error) {
	match := p.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
	if match.Length() == 0 {
		return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return staticElement{sel: match}, nil
}

func isAncestor(ancestor, node *html.Node) bool {
	for n := node.Parent; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

func (p *staticPage) SelectAfterLabel(_ context.Context, phrase string) (Element, error) {
	var label *html.Node
	var found *goquery.Selection

	// Find returns matches in document order, so the first select seen after a
	// matching label is the one following it.
	p.doc.Find("label, select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := s.Get(0)
		if label == nil {
			if goquery.NodeName(s) == "label" && textutil.ContainsNormalized(s.Text(), phrase) {
				label = node
			}
			return true
		}
		if goquery.NodeName(s) == "select" && !isAncestor(label, node) {
			found = s
			return false
		}
		return true
	})

	if found == nil {
		return nil, fmt.Errorf("select after label %q: %w", phrase, ErrNotFound)
	}
	return staticElement{sel: found}, nil
}

func (p *staticPage) QueryAll(_ context.Context, selector string) ([]Element, error) {
	var out []Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, staticElement{sel: s})
	})
	return out, nil
}

func (p *staticPage) Close() error {
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Text(context.Context) (string, error) {
	return textutil.NormalizeSpace(e.sel.Text()), nil
}

var invisibleTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

func hiddenByStyle(style string) bool {
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// Visible approximates what a browser would display using only markup: the element and
// all of its ancestors must not be hidden by attribute or inline style.
func (e staticElement) Visible(context.Context) (bool, error) {
	node := e.sel.Get(0)
	if node.Data == "input" && strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if invisibleTags[n.Data] {
			return false, nil
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return false, nil
			case "aria-hidden":
				if strings.EqualFold(a.Val, "true") {
					return false, nil
				}
			case "style":
				if hiddenByStyle(a.Val) {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

// Click is a no-op, nothing reacts to it without scripts.
func (e staticElement) Click(context.Context) error {
	return nil
}

func (e staticElement) SelectByText(_ context.Context, text string) error {
	if goquery.NodeName(e.sel) != "select" {
		return ErrNotSelect
	}
	want := textutil.NormalizeSpace(text)
	options := e.sel.Find("option")
	match := options.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return textutil.NormalizeSpace(s.Text()) == want
	}).First()
	if match.Length() == 0 {
		return fmt.Errorf("%q: %w", text, ErrNoSuchOption)
	}
	options.RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	return nil
}

func (e staticElement) OptionTexts(context.Context) ([]string, error) {
	if goquery.NodeName(e.sel) != "select" {
		return nil, ErrNotSelect
	}
	var out []string
	e.sel.Find("option").Each(func(_ int, s *goquery.Selection) {
		out = append(out, textutil.NormalizeSpace(s.Text()))
	})
	return out, nil
}
