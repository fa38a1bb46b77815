// Package static implements world.Driver over a parsed HTML document, without
// a browser. Pages are fetched over HTTP or loaded from a string; scripts do
// not run and only inline styles are considered when deciding visibility.
//
// It is meant for offline tests of pages that render on the server.
package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/golang/glog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"

	"github.com/wanmail/world"
	"github.com/wanmail/world/actions"
	"github.com/wanmail/world/cssxpath"
)

// ErrClosed is returned by a Driver after Close.
var ErrClosed = errors.New("static: driver closed")

// ErrStale is returned for an element of a document that has since been
// replaced.
var ErrStale = errors.New("static: stale element reference")

// Option configures a Driver.
type Option func(*Driver)

// WithClient sets the HTTP client Navigate fetches pages with.
func WithClient(c *http.Client) Option {
	return func(d *Driver) {
		d.client = c
	}
}

// Driver is a world.Driver over one HTML document at a time.
type Driver struct {
	client *http.Client

	mu        sync.Mutex
	doc       *goquery.Document
	gen       int
	url       *url.URL
	focused   *html.Node
	performed []*actions.Sequence
	closed    bool
	// loaded is closed and replaced whenever a new document is loaded.
	loaded chan struct{}
}

var _ world.Driver = (*Driver)(nil)

// New returns a Driver showing an empty document.
func New(opts ...Option) *Driver {
	d := &Driver{client: http.DefaultClient, loaded: make(chan struct{})}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.Load(""); err != nil {
		panic(err)
	}
	return d
}

// Dial is a world.Dialer. A SOCKS5 Proxy capability routes page fetches
// through the proxy; the other capabilities only apply to real browsers.
func Dial(_ context.Context, caps world.Capabilities) (world.Driver, error) {
	if caps.Proxy == "" {
		return New(), nil
	}
	dialer, err := proxy.SOCKS5("tcp", caps.Proxy, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("static: SOCKS5 proxy %q: %w", caps.Proxy, err)
	}
	transport := &http.Transport{Proxy: nil}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return New(WithClient(&http.Client{Transport: transport})), nil
}

// Load replaces the current document with page. Relative links resolve
// against the previous URL.
func (d *Driver) Load(page string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("static: parsing page: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.show(doc, d.url)
	return nil
}

// show makes doc the current document. d.mu must be held.
func (d *Driver) show(doc *goquery.Document, u *url.URL) {
	d.doc = doc
	d.gen++
	d.url = u
	d.focused = nil
	close(d.loaded)
	d.loaded = make(chan struct{})
}

// URL returns the address of the current document, if it was fetched.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == nil {
		return ""
	}
	return d.url.String()
}

// Performed returns the action sequences performed so far.
func (d *Driver) Performed() []*actions.Sequence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*actions.Sequence(nil), d.performed...)
}

func (d *Driver) current() (*goquery.Document, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, 0, ErrClosed
	}
	return d.doc, d.gen, nil
}

// Navigate fetches rawURL and shows the response body. "about:blank" shows an
// empty document.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if _, _, err := d.current(); err != nil {
		return err
	}
	if rawURL == "about:blank" {
		return d.Load("")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("static: invalid URL %q: %w", rawURL, err)
	}
	d.mu.Lock()
	if d.url != nil {
		u = d.url.ResolveReference(u)
	}
	d.mu.Unlock()
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("static: unsupported URL %q", u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("static: GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	glog.V(1).Infof("static: GET %s: %s", u, resp.Status)

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("static: GET %s: %w", u, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return fmt.Errorf("static: parsing %s: %w", u, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.show(doc, resp.Request.URL)
	return nil
}

func invalid(by world.By, value string, reason string) error {
	return fmt.Errorf("static: %s %q: %s: %w", by, value, reason, world.ErrInvalidSelector)
}

// FindElements looks value up below parent, or in the whole document.
// Selectors using the extensions of package cssxpath are invalid CSS here, as
// they are in a browser.
func (d *Driver) FindElements(_ context.Context, parent world.Element, by world.By, value string) ([]world.Element, error) {
	doc, gen, err := d.current()
	if err != nil {
		return nil, err
	}
	root := doc.Get(0)
	if parent != nil {
		p, ok := parent.(*Element)
		if !ok {
			return nil, fmt.Errorf("static: foreign element %T", parent)
		}
		if p.gen != gen {
			return nil, ErrStale
		}
		root = p.node
	}

	var nodes []*html.Node
	switch by {
	case world.ByCSS:
		if cssxpath.HasExtensions(value) {
			return nil, invalid(by, value, "unsupported pseudo-class")
		}
		sel, err := cascadia.Compile(value)
		if err != nil {
			return nil, invalid(by, value, err.Error())
		}
		nodes = goquery.NewDocumentFromNode(root).FindMatcher(sel).Nodes
	case world.ByXPath:
		nodes, err = queryXPath(root, value)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("static: unsupported lookup strategy %q", by)
	}

	elems := make([]world.Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &Element{d: d, node: n, gen: gen})
	}
	return elems, nil
}

// queryXPath evaluates expr against root. Like a browser, it rejects
// expressions that do not evaluate to elements.
func queryXPath(root *html.Node, expr string) ([]*html.Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, invalid(world.ByXPath, expr, err.Error())
	}
	res := compiled.Evaluate(htmlquery.CreateXPathNavigator(root))
	iter, ok := res.(*xpath.NodeIterator)
	if !ok {
		return nil, invalid(world.ByXPath, expr, fmt.Sprintf("result is %T, not elements", res))
	}
	var nodes []*html.Node
	seen := make(map[*html.Node]bool)
	for iter.MoveNext() {
		nav, ok := iter.Current().(*htmlquery.NodeNavigator)
		if !ok || nav.NodeType() != xpath.ElementNode {
			return nil, invalid(world.ByXPath, expr, "result is not an element")
		}
		if n := nav.Current(); !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// WaitVisible polls the current document, and every document loaded while
// waiting, for a displayed element matching xpath.
func (d *Driver) WaitVisible(ctx context.Context, expr string, timeout, interval time.Duration) error {
	if _, err := xpath.Compile(expr); err != nil {
		return invalid(world.ByXPath, expr, err.Error())
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		d.mu.Lock()
		doc, closed, loaded := d.doc, d.closed, d.loaded
		d.mu.Unlock()
		if closed {
			return ErrClosed
		}
		nodes, err := queryXPath(doc.Get(0), expr)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if displayed(n) {
				return nil
			}
		}
		select {
		case <-loaded:
		case <-tick.C:
		case <-deadline.C:
			return fmt.Errorf("static: no visible element matched %q within %v: %w", expr, timeout, world.ErrWaitTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ActiveElement returns the focused element, else the first element with an
// autofocus attribute, else the body.
func (d *Driver) ActiveElement(context.Context) (world.Element, error) {
	doc, gen, err := d.current()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	focused := d.focused
	d.mu.Unlock()
	if focused == nil {
		if s := doc.Find("[autofocus]").First(); s.Length() > 0 {
			focused = s.Get(0)
		} else if s := doc.Find("body"); s.Length() > 0 {
			focused = s.Get(0)
		} else {
			focused = doc.Get(0)
		}
	}
	return &Element{d: d, node: focused, gen: gen}, nil
}

// Perform records seq; there is no pointer to move.
func (d *Driver) Perform(_ context.Context, seq *actions.Sequence) error {
	if _, err := seq.MarshalJSON(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.performed = append(d.performed, seq)
	return nil
}

// ConsoleLogs always returns no entries since no script runs.
func (d *Driver) ConsoleLogs(context.Context) ([]world.LogEntry, error) {
	if _, _, err := d.current(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Close releases the document.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Element is a node of a document shown by a Driver.
type Element struct {
	d    *Driver
	node *html.Node
	gen  int
}

var _ world.Element = (*Element)(nil)

func (e *Element) check() error {
	_, gen, err := e.d.current()
	if err != nil {
		return err
	}
	if gen != e.gen {
		return ErrStale
	}
	return nil
}

// Node returns the underlying HTML node.
func (e *Element) Node() *html.Node {
	return e.node
}

// Text returns the rendered text of the element.
func (e *Element) Text(context.Context) (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return visibleText(e.node), nil
}

// Click focuses the element when it can take focus and follows it when it is
// a link to another page.
func (e *Element) Click(ctx context.Context) error {
	if err := e.check(); err != nil {
		return err
	}
	if !displayed(e.node) {
		return fmt.Errorf("static: element not interactable: <%s> is not displayed", e.node.Data)
	}
	n := e.node
	for ; n != nil && !focusable(n); n = n.Parent {
	}
	if n == nil {
		return nil
	}
	e.d.mu.Lock()
	e.d.focused = n
	e.d.mu.Unlock()

	if n.DataAtom != atom.A && n.DataAtom != atom.Area {
		return nil
	}
	href, ok := attr(n, "href")
	if !ok || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil
	}
	return e.d.Navigate(ctx, href)
}
