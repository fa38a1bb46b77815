package world

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/wanmail/world/actions"
	"github.com/wanmail/world/cssxpath"
)

// Defaults for Config and Browser.Wait.
const (
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDelay        = time.Second
)

// Config configures a Browser.
type Config struct {
	// BaseURL prefixes every path passed to OpenURL.
	BaseURL string `yaml:"base_url"`
	// StrictSelectors makes lookups fail with ErrInvalidSelector when a
	// selector is neither CSS, pseudo-CSS nor XPath. By default such a
	// selector matches nothing.
	StrictSelectors bool `yaml:"strict_selectors"`
	// WaitTimeout is the default timeout of WaitFor and WaitForText.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	// PollInterval is how often waits re-check their condition.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Browser runs UI test steps against the Driver of a Session.
type Browser struct {
	cfg  Config
	sess *Session
}

// New returns a Browser on sess, starting the Session's Driver if it is not
// running yet.
func New(ctx context.Context, sess *Session, cfg Config) (*Browser, error) {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if _, err := sess.Driver(ctx); err != nil {
		return nil, err
	}
	return &Browser{cfg: cfg, sess: sess}, nil
}

// Config returns the configuration of b.
func (b *Browser) Config() Config {
	return b.cfg
}

// Driver returns the Driver shared by all Browsers on b's Session, or nil
// once the Session is closed.
func (b *Browser) Driver() Driver {
	return b.sess.current()
}

func (b *Browser) driver(ctx context.Context) (Driver, error) {
	return b.sess.Driver(ctx)
}

// OpenURL navigates to the base URL followed by path.
func (b *Browser) OpenURL(ctx context.Context, path string) error {
	d, err := b.driver(ctx)
	if err != nil {
		return err
	}
	url := b.cfg.BaseURL + path
	glog.V(1).Infof("world: opening %s", url)
	return d.Navigate(ctx, url)
}

// whitespace matches the characters JavaScript's \s class matches.
var whitespace = regexp.MustCompile(`[\s\x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]+`)

// PageText returns the text of the elements matching selector, joined by
// spaces with every run of whitespace collapsed to one space and none left at
// either end. An empty selector means the whole document body.
func (b *Browser) PageText(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}
	elems, err := b.FindElements(ctx, selector, nil)
	if err != nil {
		return "", err
	}
	if len(elems) == 0 {
		return "", &NoElementsError{Op: "page text", Selector: selector}
	}
	texts := make([]string, 0, len(elems))
	for _, e := range elems {
		text, err := e.Text(ctx)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.Trim(whitespace.ReplaceAllString(strings.Join(texts, " "), " "), " "), nil
}

// WaitOption configures WaitFor and WaitForText.
type WaitOption func(*waitOptions)

type waitOptions struct {
	timeout  time.Duration
	interval time.Duration
}

// Timeout sets how long a wait lasts before failing with ErrWaitTimeout.
func Timeout(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// PollInterval sets how often a wait re-checks its condition.
func PollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WaitForText waits until an element containing text is visible.
func (b *Browser) WaitForText(ctx context.Context, text string, opts ...WaitOption) error {
	return b.WaitFor(ctx, ":contains("+cssString(text)+")", opts...)
}

var cssEscaper = strings.NewReplacer(`\`, `\5c `, `"`, `\22 `, "\n", `\a `, "\r", `\d `, "\f", `\c `)

// cssString quotes s as a CSS string.
func cssString(s string) string {
	return `"` + cssEscaper.Replace(s) + `"`
}

// WaitFor waits until an element matching selector is visible. selector is
// CSS or pseudo-CSS; anything the translator rejects is used as XPath.
func (b *Browser) WaitFor(ctx context.Context, selector string, opts ...WaitOption) error {
	o := waitOptions{timeout: b.cfg.WaitTimeout, interval: b.cfg.PollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	d, err := b.driver(ctx)
	if err != nil {
		return err
	}
	xpath, err := cssxpath.Translate(selector)
	if err != nil {
		xpath = selector
	}
	glog.V(1).Infof("world: waiting up to %v for %s", o.timeout, xpath)
	err = d.WaitVisible(ctx, xpath, o.timeout, o.interval)
	var te *TimeoutError
	if errors.Is(err, ErrWaitTimeout) && !errors.As(err, &te) {
		return &TimeoutError{Selector: selector, Timeout: o.timeout, Err: err}
	}
	return err
}

// Wait pauses for d, or DefaultDelay when d is not positive. It returns early
// with the context's error if ctx is done first.
func (b *Browser) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = DefaultDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FindElements returns the elements matching selector below parent, or in
// the whole document when parent is nil. The selector is tried as CSS, then
// as pseudo-CSS translated to XPath, then as XPath; the first dialect that
// parses decides the result. A selector valid in no dialect matches nothing,
// unless Config.StrictSelectors is set.
func (b *Browser) FindElements(ctx context.Context, selector string, parent Element) ([]Element, error) {
	d, err := b.driver(ctx)
	if err != nil {
		return nil, err
	}
	return findElements(ctx, d, parent, selector, b.cfg.StrictSelectors)
}

// Element returns the first element matching selector, searched below the
// first scope element when one is given.
func (b *Browser) Element(ctx context.Context, selector string, scope ...Element) (Element, error) {
	var parent Element
	if len(scope) > 0 {
		parent = scope[0]
	}
	elems, err := b.FindElements(ctx, selector, parent)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, &NoElementsError{Op: "element", Selector: selector}
	}
	return elems[0], nil
}

// ClickOn clicks the first element matching selector.
func (b *Browser) ClickOn(ctx context.Context, selector string) error {
	e, err := b.Element(ctx, selector)
	if err != nil {
		return err
	}
	return e.Click(ctx)
}

// ActiveElement returns the element that has focus.
func (b *Browser) ActiveElement(ctx context.Context) (Element, error) {
	d, err := b.driver(ctx)
	if err != nil {
		return nil, err
	}
	return d.ActiveElement(ctx)
}

// DragAndDrop presses the left mouse button at from and clicks at to.
// Coordinates are floored to whole pixels.
func (b *Browser) DragAndDrop(ctx context.Context, from, to Point) error {
	d, err := b.driver(ctx)
	if err != nil {
		return err
	}
	fx, fy := floor(from)
	tx, ty := floor(to)

	press := actions.NewPointer("mouse", actions.Mouse).MoveTo(fx, fy).Down(actions.LeftButton)
	if err := d.Perform(ctx, actions.NewSequence(press)); err != nil {
		return err
	}
	release := actions.NewPointer("mouse", actions.Mouse).MoveTo(tx, ty).Click(actions.LeftButton)
	return d.Perform(ctx, actions.NewSequence(release))
}

func floor(p Point) (x, y int) {
	return int(math.Floor(p.X)), int(math.Floor(p.Y))
}

// ConsoleLogs returns the browser console messages logged since the previous
// call.
func (b *Browser) ConsoleLogs(ctx context.Context) ([]LogEntry, error) {
	d, err := b.driver(ctx)
	if err != nil {
		return nil, err
	}
	return d.ConsoleLogs(ctx)
}
