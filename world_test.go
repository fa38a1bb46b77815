package world

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wanmail/world/actions"
)

func newBrowser(t *testing.T, d *fakeDriver, cfg Config) *Browser {
	t.Helper()
	calls := 0
	sess := NewSession(dialerFor(d, &calls), DefaultCapabilities())
	t.Cleanup(func() { sess.Close() })
	b, err := New(context.Background(), sess, cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return b
}

func asked(d *fakeDriver) []string {
	var qs []string
	for _, q := range d.queries {
		qs = append(qs, fmt.Sprintf("%s %s", q.by, q.value))
	}
	return qs
}

func names(elems []Element) []string {
	out := []string{}
	for _, e := range elems {
		out = append(out, e.(*fakeElement).name)
	}
	return out
}

func TestFindElementsDialects(t *testing.T) {
	a, b, c := &fakeElement{name: "a"}, &fakeElement{name: "b"}, &fakeElement{name: "c"}
	for _, tc := range []struct {
		name     string
		driver   *fakeDriver
		selector string
		want     []string
		asked    []string
	}{
		{
			name:     "CSS",
			driver:   newFakeDriver().on(ByCSS, "div.item", a, b).on(ByXPath, "//div", c),
			selector: "div.item",
			want:     []string{"a", "b"},
			asked:    []string{"css selector div.item"},
		},
		{
			name:     "CSS matching nothing",
			driver:   newFakeDriver().on(ByCSS, "p"),
			selector: "p",
			want:     []string{},
			asked:    []string{"css selector p"},
		},
		{
			name:     "pseudo-CSS",
			driver:   newFakeDriver().on(ByXPath, "//*[contains(string(.), 'x')]", b),
			selector: `:contains("x")`,
			want:     []string{"b"},
			asked: []string{
				`css selector :contains("x")`,
				"xpath //*[contains(string(.), 'x')]",
			},
		},
		{
			name:     "XPath",
			driver:   newFakeDriver().on(ByXPath, "//div[@id='x']", c),
			selector: "//div[@id='x']",
			want:     []string{"c"},
			asked: []string{
				"css selector //div[@id='x']",
				"xpath //div[@id='x']",
			},
		},
		{
			name:     "invalid everywhere",
			driver:   newFakeDriver(),
			selector: "!!!",
			want:     []string{},
			asked:    []string{"css selector !!!", "xpath !!!"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			br := newBrowser(t, tc.driver, Config{})
			got, err := br.FindElements(context.Background(), tc.selector, nil)
			if err != nil {
				t.Fatalf("FindElements(%q) returned error: %v", tc.selector, err)
			}
			if got == nil {
				t.Errorf("FindElements(%q) returned a nil slice", tc.selector)
			}
			if diff := cmp.Diff(tc.want, names(got)); diff != "" {
				t.Errorf("FindElements(%q) returned diff (-want/+got):\n%s", tc.selector, diff)
			}
			if diff := cmp.Diff(tc.asked, asked(tc.driver)); diff != "" {
				t.Errorf("FindElements(%q) queried diff (-want/+got):\n%s", tc.selector, diff)
			}
		})
	}
}

func TestFindElementsDriverFailure(t *testing.T) {
	boom := errors.New("connection refused")
	d := newFakeDriver().fail(ByCSS, "div", boom).on(ByXPath, "//div", &fakeElement{})
	b := newBrowser(t, d, Config{})

	_, err := b.FindElements(context.Background(), "div", nil)
	if err != boom {
		t.Fatalf("FindElements returned error %v, want %v", err, boom)
	}
	if len(d.queries) != 1 {
		t.Errorf("FindElements made %d queries after a driver failure, want 1", len(d.queries))
	}
}

func TestFindElementsStrict(t *testing.T) {
	b := newBrowser(t, newFakeDriver(), Config{StrictSelectors: true})

	_, err := b.FindElements(context.Background(), "!!!", nil)
	if !errors.Is(err, ErrInvalidSelector) {
		t.Fatalf("FindElements returned error %v, want ErrInvalidSelector", err)
	}
	var ise *InvalidSelectorError
	if !errors.As(err, &ise) || ise.Selector != "!!!" {
		t.Errorf("FindElements returned error %#v, want *InvalidSelectorError for %q", err, "!!!")
	}
}

func TestFindElementsScoped(t *testing.T) {
	parent := &fakeElement{name: "parent"}
	child := &fakeElement{name: "child"}
	d := newFakeDriver().on(ByXPath, ".//*[contains(string(.), 'x')]", child)
	b := newBrowser(t, d, Config{})

	got, err := b.Element(context.Background(), `:contains("x")`, parent)
	if err != nil {
		t.Fatalf("Element returned error: %v", err)
	}
	if got != child {
		t.Errorf("Element returned %v, want %v", got, child)
	}
	for _, q := range d.queries {
		if q.parent != parent {
			t.Errorf("query %s %q was not scoped to the parent", q.by, q.value)
		}
	}
}

func TestElementNoMatch(t *testing.T) {
	b := newBrowser(t, newFakeDriver().on(ByCSS, "#missing"), Config{})

	_, err := b.Element(context.Background(), "#missing")
	if !errors.Is(err, ErrNoElements) {
		t.Fatalf("Element returned error %v, want ErrNoElements", err)
	}
	var nee *NoElementsError
	if !errors.As(err, &nee) || nee.Selector != "#missing" {
		t.Errorf("Element returned error %#v, want *NoElementsError for %q", err, "#missing")
	}
}

func TestPageText(t *testing.T) {
	d := newFakeDriver().
		on(ByCSS, "body", &fakeElement{text: "Hello"}, &fakeElement{text: "  World  "}).
		on(ByCSS, "p", &fakeElement{text: "one\n\ttwo"}, &fakeElement{text: "three  four"}).
		on(ByCSS, "ul")
	b := newBrowser(t, d, Config{})
	ctx := context.Background()

	for _, tc := range []struct {
		selector, want string
	}{
		{"body", "Hello World"},
		{"", "Hello World"},
		{"p", "one two three four"},
	} {
		got, err := b.PageText(ctx, tc.selector)
		if err != nil {
			t.Fatalf("PageText(%q) returned error: %v", tc.selector, err)
		}
		if got != tc.want {
			t.Errorf("PageText(%q) = %q, want %q", tc.selector, got, tc.want)
		}
	}

	if _, err := b.PageText(ctx, "ul"); !errors.Is(err, ErrNoElements) {
		t.Errorf("PageText(%q) returned error %v, want ErrNoElements", "ul", err)
	}
}

func TestPageTextElementError(t *testing.T) {
	stale := errors.New("stale element reference")
	d := newFakeDriver().on(ByCSS, "body", &fakeElement{err: stale})
	b := newBrowser(t, d, Config{})

	if _, err := b.PageText(context.Background(), "body"); err != stale {
		t.Errorf("PageText returned error %v, want %v", err, stale)
	}
}

func TestOpenURL(t *testing.T) {
	d := newFakeDriver()
	b := newBrowser(t, d, Config{BaseURL: "http://localhost:8080"})

	if err := b.OpenURL(context.Background(), "/login"); err != nil {
		t.Fatalf("OpenURL returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"http://localhost:8080/login"}, d.urls); diff != "" {
		t.Errorf("OpenURL navigated diff (-want/+got):\n%s", diff)
	}
}

func TestWaitForText(t *testing.T) {
	d := newFakeDriver().on(ByXPath, "//*[contains(string(.), 'Ready')]", &fakeElement{})
	b := newBrowser(t, d, Config{})

	if err := b.WaitForText(context.Background(), "Ready"); err != nil {
		t.Fatalf("WaitForText returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"//*[contains(string(.), 'Ready')]"}, d.waits); diff != "" {
		t.Errorf("WaitForText waited diff (-want/+got):\n%s", diff)
	}
}

func TestWaitForTextQuoting(t *testing.T) {
	d := newFakeDriver()
	b := newBrowser(t, d, Config{})
	d.waitErr = errors.New("stop")

	b.WaitForText(context.Background(), `say "hi" it's \ok`)
	want := []string{`//*[contains(string(.), concat('say "hi" it', "'", 's \ok'))]`}
	if diff := cmp.Diff(want, d.waits); diff != "" {
		t.Errorf("WaitForText waited diff (-want/+got):\n%s", diff)
	}
}

func TestWaitForTextTimeout(t *testing.T) {
	b := newBrowser(t, newFakeDriver(), Config{})

	start := time.Now()
	err := b.WaitForText(context.Background(), "Done", Timeout(50*time.Millisecond))
	elapsed := time.Since(start)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("WaitForText returned error %v, want ErrWaitTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("WaitForText returned error %#v, want *TimeoutError", err)
	}
	if te.Selector != `:contains("Done")` || te.Timeout != 50*time.Millisecond {
		t.Errorf("WaitForText returned %+v", te)
	}
	if elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Errorf("WaitForText returned after %v, want about 50ms", elapsed)
	}
}

func TestWaitForXPath(t *testing.T) {
	d := newFakeDriver().on(ByXPath, "//div[@id='x']")
	b := newBrowser(t, d, Config{})

	if err := b.WaitFor(context.Background(), "//div[@id='x']"); err != nil {
		t.Fatalf("WaitFor returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"//div[@id='x']"}, d.waits); diff != "" {
		t.Errorf("WaitFor waited diff (-want/+got):\n%s", diff)
	}
}

func TestWaitForDriverError(t *testing.T) {
	d := newFakeDriver()
	d.waitErr = errors.New("session deleted")
	b := newBrowser(t, d, Config{})

	if err := b.WaitFor(context.Background(), "div"); err != d.waitErr {
		t.Errorf("WaitFor returned error %v, want %v", err, d.waitErr)
	}
}

func TestWait(t *testing.T) {
	b := newBrowser(t, newFakeDriver(), Config{})

	start := time.Now()
	if err := b.Wait(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, want at least 20ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx, 0); err != context.Canceled {
		t.Errorf("Wait on a cancelled context returned %v, want %v", err, context.Canceled)
	}
}

func TestClickOn(t *testing.T) {
	first, second := &fakeElement{}, &fakeElement{}
	b := newBrowser(t, newFakeDriver().on(ByCSS, "button", first, second), Config{})

	if err := b.ClickOn(context.Background(), "button"); err != nil {
		t.Fatalf("ClickOn returned error: %v", err)
	}
	if first.clicked != 1 || second.clicked != 0 {
		t.Errorf("ClickOn clicked first %d times and second %d times, want 1 and 0", first.clicked, second.clicked)
	}
	if err := b.ClickOn(context.Background(), "!!!"); !errors.Is(err, ErrNoElements) {
		t.Errorf("ClickOn(%q) returned error %v, want ErrNoElements", "!!!", err)
	}
}

func TestActiveElement(t *testing.T) {
	d := newFakeDriver()
	d.active = &fakeElement{name: "input"}
	b := newBrowser(t, d, Config{})

	got, err := b.ActiveElement(context.Background())
	if err != nil {
		t.Fatalf("ActiveElement returned error: %v", err)
	}
	if got != d.active {
		t.Errorf("ActiveElement returned %v, want %v", got, d.active)
	}
}

func TestDragAndDrop(t *testing.T) {
	d := newFakeDriver()
	b := newBrowser(t, d, Config{})

	if err := b.DragAndDrop(context.Background(), Point{10.7, 20.2}, Point{30.9, 40.1}); err != nil {
		t.Fatalf("DragAndDrop returned error: %v", err)
	}
	move := func(x, y int) actions.Action {
		return actions.Action{Type: actions.PointerMove, Duration: actions.DefaultMoveDuration, X: x, Y: y, Origin: actions.Viewport}
	}
	down := actions.Action{Type: actions.PointerDown, Button: actions.LeftButton}
	up := actions.Action{Type: actions.PointerUp, Button: actions.LeftButton}
	want := [][]actions.Action{
		{move(10, 20), down},
		{move(30, 40), down, up},
	}
	var got [][]actions.Action
	for _, seq := range d.sequence {
		if len(seq.Pointers) != 1 || seq.Pointers[0].Kind != actions.Mouse {
			t.Fatalf("DragAndDrop performed %+v, want one mouse source", seq)
		}
		got = append(got, seq.Pointers[0].Actions)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DragAndDrop performed diff (-want/+got):\n%s", diff)
	}
}

func TestConsoleLogs(t *testing.T) {
	d := newFakeDriver()
	d.logs = []LogEntry{{Level: "SEVERE", Message: "boom"}}
	b := newBrowser(t, d, Config{})

	got, err := b.ConsoleLogs(context.Background())
	if err != nil {
		t.Fatalf("ConsoleLogs returned error: %v", err)
	}
	if diff := cmp.Diff([]LogEntry{{Level: "SEVERE", Message: "boom"}}, got); diff != "" {
		t.Errorf("ConsoleLogs returned diff (-want/+got):\n%s", diff)
	}
}
