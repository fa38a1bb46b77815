package static

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wanmail/world"
	"github.com/wanmail/world/actions"
	"github.com/wanmail/world/internal/worldtest"
)

func TestStatic(t *testing.T) {
	s := httptest.NewServer(worldtest.Handler)
	defer s.Close()

	worldtest.RunCommonTests(t, worldtest.Config{
		Dial:         Dial,
		Capabilities: world.DefaultCapabilities(),
		ServerURL:    s.URL,
		NoScript:     true,
	})
}

const page = `
<html>
<head><title>t</title><style>p { color: red }</style></head>
<body>
	<div id="shown">Shown <span hidden>not this</span>text</div>
	<div style="display:none"><p id="nested">Nested</p></div>
	<p id="invisible" style="visibility: hidden">Invisible</p>
	<input id="secret" type="hidden" value="x">
	<ul><li>One</li><li>Two<br>lines</li></ul>
	<button id="b" autofocus>Press</button>
	<a id="a" href="#top">Anchor</a>
	<span id="plain">Plain</span>
</body>
</html>
`

func load(t *testing.T, d *Driver, html string) {
	t.Helper()
	if err := d.Load(html); err != nil {
		t.Fatalf("d.Load() returned error: %v", err)
	}
}

func find(t *testing.T, d *Driver, by world.By, value string) []world.Element {
	t.Helper()
	elems, err := d.FindElements(context.Background(), nil, by, value)
	if err != nil {
		t.Fatalf("d.FindElements(_, nil, %q, %q) returned error: %v", by, value, err)
	}
	return elems
}

func text(t *testing.T, e world.Element) string {
	t.Helper()
	s, err := e.Text(context.Background())
	if err != nil {
		t.Fatalf("e.Text() returned error: %v", err)
	}
	return s
}

func TestText(t *testing.T) {
	d := New()
	load(t, d, page)

	for _, tc := range []struct {
		selector, want string
	}{
		{"#shown", "Shown text"},
		{"#nested", ""},
		{"#invisible", ""},
		{"ul", "One\nTwo\nlines"},
		{"title", ""},
	} {
		elems := find(t, d, world.ByCSS, tc.selector)
		if len(elems) != 1 {
			t.Fatalf("%q matched %d elements, want 1", tc.selector, len(elems))
		}
		if got := text(t, elems[0]); got != tc.want {
			t.Errorf("text of %q = %q, want %q", tc.selector, got, tc.want)
		}
	}
}

func TestInvalidSelectors(t *testing.T) {
	d := New()
	load(t, d, page)

	for _, tc := range []struct {
		by    world.By
		value string
	}{
		{world.ByCSS, "li:contains('One')"},
		{world.ByCSS, "li:first"},
		{world.ByCSS, "!!!"},
		{world.ByXPath, "//li["},
		{world.ByXPath, "count(//li)"},
		{world.ByXPath, "//a/@href"},
		{world.ByXPath, "//li/text()"},
	} {
		_, err := d.FindElements(context.Background(), nil, tc.by, tc.value)
		if !errors.Is(err, world.ErrInvalidSelector) {
			t.Errorf("d.FindElements(_, nil, %q, %q) returned error %v, want ErrInvalidSelector", tc.by, tc.value, err)
		}
	}
}

func TestScopedLookups(t *testing.T) {
	d := New()
	load(t, d, page)
	ctx := context.Background()

	ul := find(t, d, world.ByCSS, "ul")[0]
	for _, tc := range []struct {
		by    world.By
		value string
		want  []string
	}{
		{world.ByCSS, "li", []string{"One", "Two\nlines"}},
		{world.ByCSS, "ul", []string{}},
		{world.ByXPath, ".//li[1]", []string{"One"}},
	} {
		elems, err := d.FindElements(ctx, ul, tc.by, tc.value)
		if err != nil {
			t.Fatalf("d.FindElements(_, ul, %q, %q) returned error: %v", tc.by, tc.value, err)
		}
		got := []string{}
		for _, e := range elems {
			got = append(got, text(t, e))
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("d.FindElements(_, ul, %q, %q) returned diff (-want/+got):\n%s", tc.by, tc.value, diff)
		}
	}
}

func TestStaleElement(t *testing.T) {
	d := New()
	load(t, d, page)
	e := find(t, d, world.ByCSS, "#plain")[0]
	load(t, d, page)

	if _, err := e.Text(context.Background()); err != ErrStale {
		t.Errorf("e.Text() on a replaced document returned error %v, want %v", err, ErrStale)
	}
	if _, err := d.FindElements(context.Background(), e, world.ByCSS, "p"); err != ErrStale {
		t.Errorf("d.FindElements under a stale parent returned error %v, want %v", err, ErrStale)
	}
}

func TestActiveElement(t *testing.T) {
	d := New()
	ctx := context.Background()

	load(t, d, page)
	active, err := d.ActiveElement(ctx)
	if err != nil {
		t.Fatalf("d.ActiveElement() returned error: %v", err)
	}
	if got := text(t, active); got != "Press" {
		t.Errorf("autofocused element text = %q, want %q", got, "Press")
	}

	if err := find(t, d, world.ByCSS, "#a")[0].Click(ctx); err != nil {
		t.Fatalf("Click() returned error: %v", err)
	}
	active, err = d.ActiveElement(ctx)
	if err != nil {
		t.Fatalf("d.ActiveElement() returned error: %v", err)
	}
	if got := text(t, active); got != "Anchor" {
		t.Errorf("clicked element text = %q, want %q", got, "Anchor")
	}

	load(t, d, "<p>no focus</p>")
	active, err = d.ActiveElement(ctx)
	if err != nil {
		t.Fatalf("d.ActiveElement() returned error: %v", err)
	}
	if got := active.(*Element).Node().Data; got != "body" {
		t.Errorf("active element = <%s>, want <body>", got)
	}
}

func TestClickHidden(t *testing.T) {
	d := New()
	load(t, d, page)

	if err := find(t, d, world.ByCSS, "#nested")[0].Click(context.Background()); err == nil {
		t.Error("Click() on a hidden element returned nil error")
	}
}

func TestWaitVisible(t *testing.T) {
	d := New()
	load(t, d, page)
	ctx := context.Background()

	if err := d.WaitVisible(ctx, "//*[@id='shown']", time.Second, 10*time.Millisecond); err != nil {
		t.Errorf("d.WaitVisible(shown) returned error: %v", err)
	}
	for _, xpath := range []string{"//*[@id='nested']", "//*[@id='invisible']", "//*[@id='secret']", "//*[@id='none']"} {
		if err := d.WaitVisible(ctx, xpath, 20*time.Millisecond, 5*time.Millisecond); !errors.Is(err, world.ErrWaitTimeout) {
			t.Errorf("d.WaitVisible(%q) returned error %v, want ErrWaitTimeout", xpath, err)
		}
	}
	if err := d.WaitVisible(ctx, "//p[", time.Second, time.Millisecond); !errors.Is(err, world.ErrInvalidSelector) {
		t.Errorf("d.WaitVisible(%q) returned error %v, want ErrInvalidSelector", "//p[", err)
	}
}

func TestWaitVisibleAfterLoad(t *testing.T) {
	d := New()
	load(t, d, "<p>loading</p>")

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Load("<p id='ready'>ready</p>")
	}()
	if err := d.WaitVisible(context.Background(), "//p[@id='ready']", 5*time.Second, time.Hour); err != nil {
		t.Errorf("d.WaitVisible() returned error: %v", err)
	}
}

func TestWaitVisibleCancel(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.WaitVisible(ctx, "//never", time.Hour, time.Hour); err != context.Canceled {
		t.Errorf("d.WaitVisible() returned error %v, want %v", err, context.Canceled)
	}
}

func TestPerform(t *testing.T) {
	d := New()
	seq := actions.NewSequence(actions.NewPointer("", actions.Mouse).MoveTo(1, 2).Click(actions.LeftButton))
	if err := d.Perform(context.Background(), seq); err != nil {
		t.Fatalf("d.Perform() returned error: %v", err)
	}
	if got := d.Performed(); len(got) != 1 || got[0] != seq {
		t.Errorf("d.Performed() = %v, want [%v]", got, seq)
	}

	bad := actions.NewSequence(actions.NewPointer("p", "stylus").MoveTo(1, 2))
	if err := d.Perform(context.Background(), bad); err == nil {
		t.Error("d.Perform() with an invalid pointer kind returned nil error")
	}
}

func TestClose(t *testing.T) {
	d := New()
	if err := d.Close(); err != nil {
		t.Fatalf("d.Close() returned error: %v", err)
	}
	if _, err := d.FindElements(context.Background(), nil, world.ByCSS, "p"); err != ErrClosed {
		t.Errorf("d.FindElements() after Close returned error %v, want %v", err, ErrClosed)
	}
	if err := d.Navigate(context.Background(), "about:blank"); err != ErrClosed {
		t.Errorf("d.Navigate() after Close returned error %v, want %v", err, ErrClosed)
	}
}
