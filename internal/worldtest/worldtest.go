// Package worldtest provides tests to exercise package world against a real
// Driver. The tests live in a separate package so that every backend runs the
// same suite.
package worldtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	socks5 "github.com/armon/go-socks5"
	"github.com/google/go-cmp/cmp"

	"github.com/wanmail/world"
	"github.com/wanmail/world/cssxpath"
)

// Config describes the backend under test.
type Config struct {
	// Dial starts the Driver under test.
	Dial world.Dialer
	// Capabilities are passed to Dial.
	Capabilities world.Capabilities
	// ServerURL is where Handler is served.
	ServerURL string
	// NoScript is set for backends that do not run page scripts.
	NoScript  bool
	SkipProxy bool
}

func runTest(f func(*testing.T, Config), c Config) func(*testing.T) {
	return func(t *testing.T) {
		f(t, c)
	}
}

func newSession(t *testing.T, c Config) *world.Session {
	sess := world.NewSession(c.Dial, c.Capabilities)
	t.Cleanup(func() {
		if err := sess.Close(); err != nil {
			t.Errorf("sess.Close() returned error: %v", err)
		}
	})
	return sess
}

func newBrowser(t *testing.T, c Config) *world.Browser {
	b, err := world.New(context.Background(), newSession(t, c), world.Config{BaseURL: c.ServerURL})
	if err != nil {
		t.Fatalf("world.New(_, _, %q) returned error: %v", c.ServerURL, err)
	}
	return b
}

func open(t *testing.T, b *world.Browser, path string) {
	if err := b.OpenURL(context.Background(), path); err != nil {
		t.Fatalf("b.OpenURL(%q) returned error: %v", path, err)
	}
}

func texts(t *testing.T, elems []world.Element) []string {
	out := []string{}
	for _, e := range elems {
		text, err := e.Text(context.Background())
		if err != nil {
			t.Fatalf("e.Text() returned error: %v", err)
		}
		out = append(out, text)
	}
	return out
}

// RunCommonTests runs the tests every backend must pass.
func RunCommonTests(t *testing.T, c Config) {
	t.Run("OpenURL", runTest(testOpenURL, c))
	t.Run("PageText", runTest(testPageText, c))
	t.Run("FindElementsCSS", runTest(testFindElementsCSS, c))
	t.Run("FindElementsPseudoCSS", runTest(testFindElementsPseudoCSS, c))
	t.Run("FindElementsXPath", runTest(testFindElementsXPath, c))
	t.Run("FindElementsInvalid", runTest(testFindElementsInvalid, c))
	t.Run("FindElementsScoped", runTest(testFindElementsScoped, c))
	t.Run("ElementNotFound", runTest(testElementNotFound, c))
	t.Run("ClickOn", runTest(testClickOn, c))
	t.Run("WaitForText", runTest(testWaitForText, c))
	t.Run("WaitForTextTimeout", runTest(testWaitForTextTimeout, c))
	t.Run("WaitForHidden", runTest(testWaitForHidden, c))
	t.Run("ActiveElement", runTest(testActiveElement, c))
	t.Run("DragAndDrop", runTest(testDragAndDrop, c))
	t.Run("ConsoleLogs", runTest(testConsoleLogs, c))
	t.Run("SharedSession", runTest(testSharedSession, c))
	t.Run("Proxy", runTest(testProxy, c))
}

func testOpenURL(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/other")

	text, err := b.PageText(context.Background(), "")
	if err != nil {
		t.Fatalf("b.PageText(\"\") returned error: %v", err)
	}
	if want := "The other page."; !strings.Contains(text, want) {
		t.Fatalf("b.PageText(\"\") = %q, want it to contain %q", text, want)
	}
}

func testPageText(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/hello")
	ctx := context.Background()

	for _, selector := range []string{"body", "span", ""} {
		text, err := b.PageText(ctx, selector)
		if err != nil {
			t.Fatalf("b.PageText(%q) returned error: %v", selector, err)
		}
		if want := "Hello World"; text != want {
			t.Errorf("b.PageText(%q) = %q, want %q", selector, text, want)
		}
	}

	_, err := b.PageText(ctx, "#missing")
	var nee *world.NoElementsError
	if !errors.As(err, &nee) || nee.Selector != "#missing" {
		t.Errorf("b.PageText(%q) returned error %v, want a NoElementsError for the selector", "#missing", err)
	}
}

func testFindElementsCSS(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	elems, err := b.FindElements(context.Background(), "li.item", nil)
	if err != nil {
		t.Fatalf("b.FindElements(%q) returned error: %v", "li.item", err)
	}
	want := []string{"First item", "Second item", "Done item"}
	if diff := cmp.Diff(want, texts(t, elems)); diff != "" {
		t.Errorf("b.FindElements(%q) returned diff (-want/+got):\n%s", "li.item", diff)
	}
}

func testFindElementsPseudoCSS(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")
	ctx := context.Background()

	for _, selector := range []string{`li:contains("Second")`, "li.item:eq(2)", "ul > li:last"} {
		got, err := b.FindElements(ctx, selector, nil)
		if err != nil {
			t.Fatalf("b.FindElements(%q) returned error: %v", selector, err)
		}
		xpath, err := cssxpath.Translate(selector)
		if err != nil {
			t.Fatalf("cssxpath.Translate(%q) returned error: %v", selector, err)
		}
		want, err := b.Driver().FindElements(ctx, nil, world.ByXPath, xpath)
		if err != nil {
			t.Fatalf("FindElements(_, nil, ByXPath, %q) returned error: %v", xpath, err)
		}
		if len(want) == 0 {
			t.Errorf("%q matched nothing", xpath)
		}
		if diff := cmp.Diff(texts(t, want), texts(t, got)); diff != "" {
			t.Errorf("b.FindElements(%q) returned diff (-want/+got):\n%s", selector, diff)
		}
	}
}

func testFindElementsXPath(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	const selector = "//ul[@id='items']/li[last()]"
	elems, err := b.FindElements(context.Background(), selector, nil)
	if err != nil {
		t.Fatalf("b.FindElements(%q) returned error: %v", selector, err)
	}
	if diff := cmp.Diff([]string{"Done item"}, texts(t, elems)); diff != "" {
		t.Errorf("b.FindElements(%q) returned diff (-want/+got):\n%s", selector, diff)
	}
}

func testFindElementsInvalid(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	for _, selector := range []string{"!!!", "li[", "//li["} {
		elems, err := b.FindElements(context.Background(), selector, nil)
		if err != nil {
			t.Fatalf("b.FindElements(%q) returned error: %v", selector, err)
		}
		if elems == nil || len(elems) != 0 {
			t.Errorf("b.FindElements(%q) = %v, want an empty slice", selector, elems)
		}
	}
}

func testFindElementsScoped(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")
	ctx := context.Background()

	list, err := b.Element(ctx, "#items")
	if err != nil {
		t.Fatalf("b.Element(%q) returned error: %v", "#items", err)
	}
	done, err := b.Element(ctx, `:contains("Done")`, list)
	if err != nil {
		t.Fatalf("b.Element(%q, list) returned error: %v", `:contains("Done")`, err)
	}
	text, err := done.Text(ctx)
	if err != nil {
		t.Fatalf("done.Text() returned error: %v", err)
	}
	if text != "Done item" {
		t.Errorf("done.Text() = %q, want %q", text, "Done item")
	}

	if _, err := b.Element(ctx, "h1", list); !errors.Is(err, world.ErrNoElements) {
		t.Errorf("b.Element(%q, list) returned error %v, want ErrNoElements", "h1", err)
	}
}

func testElementNotFound(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	_, err := b.Element(context.Background(), "#missing")
	var nee *world.NoElementsError
	if !errors.As(err, &nee) || nee.Selector != "#missing" {
		t.Fatalf("b.Element(%q) returned error %v, want a NoElementsError for the selector", "#missing", err)
	}
}

func testClickOn(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")
	ctx := context.Background()

	if err := b.ClickOn(ctx, "#other"); err != nil {
		t.Fatalf("b.ClickOn(%q) returned error: %v", "#other", err)
	}
	if err := b.WaitForText(ctx, "The other page", world.Timeout(5*time.Second)); err != nil {
		t.Fatalf("b.WaitForText after clicking a link returned error: %v", err)
	}
	if err := b.ClickOn(ctx, "#missing"); !errors.Is(err, world.ErrNoElements) {
		t.Errorf("b.ClickOn(%q) returned error %v, want ErrNoElements", "#missing", err)
	}
}

func testWaitForText(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")
	ctx := context.Background()

	if err := b.WaitForText(ctx, "Second item", world.Timeout(time.Second)); err != nil {
		t.Errorf("b.WaitForText(%q) returned error: %v", "Second item", err)
	}
	if err := b.WaitFor(ctx, "#title", world.Timeout(time.Second)); err != nil {
		t.Errorf("b.WaitFor(%q) returned error: %v", "#title", err)
	}
	if err := b.WaitFor(ctx, "//h1", world.Timeout(time.Second)); err != nil {
		t.Errorf("b.WaitFor(%q) returned error: %v", "//h1", err)
	}
}

func testWaitForTextTimeout(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	start := time.Now()
	err := b.WaitForText(context.Background(), "Done!", world.Timeout(50*time.Millisecond))
	elapsed := time.Since(start)
	if !errors.Is(err, world.ErrWaitTimeout) {
		t.Fatalf("b.WaitForText(%q) returned error %v, want ErrWaitTimeout", "Done!", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("b.WaitForText(%q) took %v with a 50ms timeout", "Done!", elapsed)
	}
}

func testWaitForHidden(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")

	err := b.WaitFor(context.Background(), "#secret", world.Timeout(100*time.Millisecond))
	if !errors.Is(err, world.ErrWaitTimeout) {
		t.Fatalf("b.WaitFor(%q) on a hidden element returned error %v, want ErrWaitTimeout", "#secret", err)
	}
}

func testActiveElement(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/")
	ctx := context.Background()

	if err := b.ClickOn(ctx, "#jump"); err != nil {
		t.Fatalf("b.ClickOn(%q) returned error: %v", "#jump", err)
	}
	e, err := b.ActiveElement(ctx)
	if err != nil {
		t.Fatalf("b.ActiveElement() returned error: %v", err)
	}
	text, err := e.Text(ctx)
	if err != nil {
		t.Fatalf("e.Text() returned error: %v", err)
	}
	if text != "Jump to the list" {
		t.Errorf("active element text = %q, want %q", text, "Jump to the list")
	}
}

func testDragAndDrop(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/drag")

	if err := b.DragAndDrop(context.Background(), world.Point{X: 10.7, Y: 20.2}, world.Point{X: 30.9, Y: 40.1}); err != nil {
		t.Fatalf("b.DragAndDrop() returned error: %v", err)
	}
	if c.NoScript {
		return
	}
	text, err := b.PageText(context.Background(), "#events")
	if err != nil {
		t.Fatalf("b.PageText(%q) returned error: %v", "#events", err)
	}
	if !strings.HasPrefix(text, "down 10,20") || !strings.HasSuffix(text, "up 30,40") {
		t.Errorf("pointer events = %q, want a press at 10,20 and a release at 30,40", text)
	}
}

func testConsoleLogs(t *testing.T, c Config) {
	b := newBrowser(t, c)
	open(t, b, "/log")

	logs, err := b.ConsoleLogs(context.Background())
	if err != nil {
		t.Fatalf("b.ConsoleLogs() returned error: %v", err)
	}
	if c.NoScript {
		if len(logs) != 0 {
			t.Errorf("b.ConsoleLogs() = %v, want none without scripts", logs)
		}
		return
	}
	for _, l := range logs {
		if strings.Contains(l.Message, "console log") {
			return
		}
	}
	t.Errorf("b.ConsoleLogs() = %v, want an entry containing %q", logs, "console log")
}

func testSharedSession(t *testing.T, c Config) {
	sess := newSession(t, c)
	ctx := context.Background()

	b1, err := world.New(ctx, sess, world.Config{BaseURL: c.ServerURL})
	if err != nil {
		t.Fatalf("world.New returned error: %v", err)
	}
	b2, err := world.New(ctx, sess, world.Config{})
	if err != nil {
		t.Fatalf("world.New returned error: %v", err)
	}
	if b1.Driver() != b2.Driver() {
		t.Fatal("Browsers on one Session do not share a Driver")
	}

	open(t, b1, "/other")
	text, err := b2.PageText(ctx, "body")
	if err != nil {
		t.Fatalf("b2.PageText(%q) returned error: %v", "body", err)
	}
	if !strings.Contains(text, "The other page.") {
		t.Errorf("b2.PageText(%q) = %q, want the page b1 opened", "body", text)
	}
}

const proxyPageContents = "You are viewing a proxied page"

// addrRewriter rewrites all requested addresses to the one specified by the
// URL.
type addrRewriter struct{ u *url.URL }

func (a *addrRewriter) Rewrite(ctx context.Context, _ *socks5.Request) (context.Context, *socks5.AddrSpec) {
	port, err := strconv.Atoi(a.u.Port())
	if err != nil {
		panic(err)
	}
	return ctx, &socks5.AddrSpec{
		FQDN: a.u.Hostname(),
		Port: port,
	}
}

func testProxy(t *testing.T, c Config) {
	if c.SkipProxy {
		t.Skip("Proxy test disabled for this backend.")
	}

	// A different web server that is only reachable through the proxy.
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>"+proxyPageContents+"</body></html>")
	}))
	defer s.Close()

	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatalf("url.Parse(%q) returned error: %v", s.URL, err)
	}
	socks, err := socks5.New(&socks5.Config{
		Rewriter: &addrRewriter{u},
	})
	if err != nil {
		t.Fatalf("socks5.New(_) returned error: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen(_, _) return error: %v", err)
	}

	// Start serving SOCKS connections, but don't fail the test once the
	// listener is closed at the end of execution.
	done := make(chan struct{})
	go func() {
		err := socks.Serve(l)
		select {
		case <-done:
			return
		default:
		}
		if err != nil {
			t.Errorf("socks.Serve(_) returned error: %v", err)
		}
	}()
	defer func() {
		close(done)
		l.Close()
	}()

	c.Capabilities.Proxy = l.Addr().String()
	if c.Capabilities.Browser == "chrome" {
		// Chrome bypasses proxies for loopback addresses unless told not to.
		c.Capabilities.Args = append(append([]string(nil), c.Capabilities.Args...), "--proxy-bypass-list=<-loopback>")
	}
	b := newBrowser(t, c)
	open(t, b, "/")

	text, err := b.PageText(context.Background(), "body")
	if err != nil {
		t.Fatalf("b.PageText(%q) returned error: %v", "body", err)
	}
	if !strings.Contains(text, proxyPageContents) {
		if strings.Contains(text, "The home page") {
			t.Fatal("Got non-proxied page.")
		}
		t.Fatalf("Got page: %s\n\nExpected: %q", text, proxyPageContents)
	}
}
