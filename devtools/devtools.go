// Package devtools implements world.Driver over the Chrome DevTools Protocol
// using github.com/chromedp/chromedp, without a WebDriver server in between.
//
// Dial either launches a browser (caps.BrowserPath, or Chrome found on the
// PATH) or attaches to a running one when caps.RemoteURL names its DevTools
// websocket or HTTP endpoint.
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/golang/glog"
	"github.com/mailru/easyjson"

	"github.com/wanmail/world"
)

// ErrNotInteractable is returned when clicking an element that has no box on
// the page.
var ErrNotInteractable = errors.New("devtools: element not interactable")

// Driver is a world.Driver for one browser tab.
type Driver struct {
	ctx    context.Context // tab context, carries the chromedp target
	cancel context.CancelFunc

	mu       sync.Mutex
	logs     []world.LogEntry
	minLevel int
	pointers map[string]*pointerState
}

var _ world.Driver = (*Driver)(nil)

// Dial is a world.Dialer.
func Dial(ctx context.Context, caps world.Capabilities) (world.Driver, error) {
	if caps.Browser != "" && caps.Browser != "chrome" {
		return nil, fmt.Errorf("devtools: unsupported browser %q", caps.Browser)
	}
	minLevel, err := levelRank(caps.ConsoleLogLevel)
	if err != nil {
		return nil, err
	}

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if caps.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), caps.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocatorOptions(caps)...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(glog.Errorf))
	d := &Driver{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		minLevel: minLevel,
		pointers: make(map[string]*pointerState),
	}
	chromedp.ListenTarget(tabCtx, d.onEvent)

	// The browser outlives ctx, but a cancelled dial must not leave one
	// starting up.
	stop := context.AfterFunc(ctx, d.cancel)
	defer stop()

	glog.V(1).Infof("devtools: starting browser %q", caps.BrowserPath)
	if err := chromedp.Run(tabCtx, cdplog.Enable()); err != nil {
		d.cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("devtools: starting browser: %w", err)
	}
	return d, nil
}

// allocatorOptions maps caps onto flags for a launched browser.
func allocatorOptions(caps world.Capabilities) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if !caps.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if caps.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(caps.BrowserPath))
	}
	if caps.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer("socks5://"+caps.Proxy))
	}
	for _, arg := range caps.Args {
		name, value := parseFlag(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlag splits a command line switch such as "--window-size=800,600"
// into its name and value. Switches without a value are true.
func parseFlag(arg string) (string, interface{}) {
	arg = strings.TrimLeft(arg, "-")
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}

// run runs fn against the tab until it returns or ctx is done.
func (d *Driver) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(fn))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("devtools: navigating to %s: %w", url, err)
	}
	return nil
}

// evaluate evaluates expr in the page and returns a reference to the result.
func evaluate(ctx context.Context, expr string) (*runtime.RemoteObject, error) {
	obj, exp, err := runtime.Evaluate(expr).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		return nil, exp
	}
	return obj, nil
}

// callOn calls the function declaration fn with this bound to the object id
// and args encoded as JSON.
func callOn(ctx context.Context, id runtime.RemoteObjectID, fn string, byValue bool, args ...interface{}) (*runtime.RemoteObject, error) {
	callArgs := make([]*runtime.CallArgument, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		callArgs = append(callArgs, &runtime.CallArgument{Value: easyjson.RawMessage(b)})
	}
	obj, exp, err := runtime.CallFunctionOn(fn).
		WithObjectID(id).
		WithArguments(callArgs).
		WithReturnByValue(byValue).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		return nil, exp
	}
	return obj, nil
}

// lookupFunction returns the matches as an array, or the error message as a
// string when the selector is rejected.
const lookupFunction = `function(by, value) {
	const root = this;
	try {
		if (by === "css selector") {
			return Array.from(root.querySelectorAll(value));
		}
		const doc = root.ownerDocument || root;
		const r = doc.evaluate(value, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < r.snapshotLength; i++) {
			const n = r.snapshotItem(i);
			if (n.nodeType !== Node.ELEMENT_NODE) {
				return "result is not an element: " + n.nodeName;
			}
			out.push(n);
		}
		return out;
	} catch (e) {
		if (e.name === "SyntaxError" || e.name === "TypeError" || e.name === "NamespaceError") {
			return e.message;
		}
		throw e;
	}
}`

// FindElements looks value up below parent, or in the whole document.
func (d *Driver) FindElements(ctx context.Context, parent world.Element, by world.By, value string) ([]world.Element, error) {
	if by != world.ByCSS && by != world.ByXPath {
		return nil, fmt.Errorf("devtools: unsupported lookup strategy %q", by)
	}
	var elems []world.Element
	err := d.run(ctx, func(ctx context.Context) error {
		var root runtime.RemoteObjectID
		if parent == nil {
			doc, err := evaluate(ctx, "document")
			if err != nil {
				return err
			}
			root = doc.ObjectID
		} else {
			p, ok := parent.(*Element)
			if !ok {
				return fmt.Errorf("devtools: foreign element %T", parent)
			}
			root = p.id
		}

		found, err := callOn(ctx, root, lookupFunction, false, string(by), value)
		if err != nil {
			return err
		}
		if found.Type == runtime.TypeString {
			var msg string
			json.Unmarshal(found.Value, &msg)
			return fmt.Errorf("devtools: %s %q: %s: %w", by, value, msg, world.ErrInvalidSelector)
		}
		elems, err = d.unpack(ctx, found.ObjectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return elems, nil
}

// unpack turns a reference to an array of elements into Elements.
func (d *Driver) unpack(ctx context.Context, array runtime.RemoteObjectID) ([]world.Element, error) {
	defer runtime.ReleaseObject(array).Do(ctx)

	obj, err := callOn(ctx, array, `function() { return this.length; }`, true)
	if err != nil {
		return nil, err
	}
	var n int
	if err := json.Unmarshal(obj.Value, &n); err != nil {
		return nil, fmt.Errorf("devtools: decoding match count: %w", err)
	}
	elems := make([]world.Element, 0, n)
	for i := 0; i < n; i++ {
		obj, err := callOn(ctx, array, `function(i) { return this[i]; }`, false, i)
		if err != nil {
			return nil, err
		}
		elems = append(elems, &Element{d: d, id: obj.ObjectID})
	}
	return elems, nil
}

// visibleFunction reports whether any element matching the XPath is
// rendered.
const visibleFunction = `function(xpath) {
	const r = document.evaluate(xpath, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < r.snapshotLength; i++) {
		const n = r.snapshotItem(i);
		if (n.nodeType !== Node.ELEMENT_NODE) {
			continue;
		}
		const style = window.getComputedStyle(n);
		if (style.visibility !== "hidden" && n.getClientRects().length > 0) {
			return true;
		}
	}
	return false;
}`

// WaitVisible polls in the page until an element matching xpath is
// displayed.
func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout, interval time.Duration) error {
	// Reject bad expressions up front, the poll would only time out.
	if _, err := d.FindElements(ctx, nil, world.ByXPath, xpath); err != nil {
		return err
	}
	if timeout <= 0 {
		// A zero polling timeout waits forever.
		timeout = time.Millisecond
	}
	err := d.run(ctx, func(ctx context.Context) error {
		return chromedp.PollFunction(visibleFunction, nil,
			chromedp.WithPollingTimeout(timeout),
			chromedp.WithPollingInterval(interval),
			chromedp.WithPollingArgs(xpath),
		).Do(ctx)
	})
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("devtools: %q not visible after %v: %w", xpath, timeout, world.ErrWaitTimeout)
	}
	return err
}

// ActiveElement returns the focused element, or the body when nothing has
// focus.
func (d *Driver) ActiveElement(ctx context.Context) (world.Element, error) {
	var e *Element
	err := d.run(ctx, func(ctx context.Context) error {
		obj, err := evaluate(ctx, "document.activeElement || document.body")
		if err != nil {
			return err
		}
		if obj.ObjectID == "" {
			return errors.New("devtools: document has no active element")
		}
		e = &Element{d: d, id: obj.ObjectID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ConsoleLogs returns the console and browser log entries at or above the
// configured level that arrived since the previous call.
func (d *Driver) ConsoleLogs(ctx context.Context) ([]world.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	logs := d.logs
	d.logs = nil
	return logs, nil
}

// Close closes the tab and, for a launched browser, the browser.
func (d *Driver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		glog.Warningf("devtools: closing browser: %v", err)
		return err
	}
	return nil
}

// Element is a world.Element backed by a remote object reference. References
// do not survive a navigation.
type Element struct {
	d  *Driver
	id runtime.RemoteObjectID
}

var _ world.Element = (*Element)(nil)

// ObjectID returns the remote object the element refers to.
func (e *Element) ObjectID() runtime.RemoteObjectID {
	return e.id
}

const textFunction = `function() {
	const style = window.getComputedStyle(this);
	if (style.visibility === "hidden" || this.getClientRects().length === 0) {
		return "";
	}
	return this.innerText;
}`

// Text returns the rendered text of the element.
func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.d.run(ctx, func(ctx context.Context) error {
		obj, err := callOn(ctx, e.id, textFunction, true)
		if err != nil {
			return err
		}
		return json.Unmarshal(obj.Value, &text)
	})
	return text, err
}

// centerFunction scrolls the element into view and returns the middle of its
// first box in viewport coordinates, or null when it has none.
const centerFunction = `function() {
	this.scrollIntoView({block: "center", inline: "center"});
	const r = this.getClientRects()[0];
	if (!r || r.width === 0 || r.height === 0) {
		return null;
	}
	return {x: r.left + r.width / 2, y: r.top + r.height / 2};
}`

// Click presses and releases the left button in the middle of the element.
func (e *Element) Click(ctx context.Context) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		obj, err := callOn(ctx, e.id, centerFunction, true)
		if err != nil {
			return err
		}
		var center *struct{ X, Y float64 }
		if err := json.Unmarshal(obj.Value, &center); err != nil {
			return fmt.Errorf("devtools: decoding element position: %w", err)
		}
		if center == nil {
			return ErrNotInteractable
		}
		return click(ctx, center.X, center.Y)
	})
}
