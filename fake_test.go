package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wanmail/world/actions"
)

type fakeElement struct {
	name    string
	text    string
	clicked int
	err     error
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, e.err }

func (e *fakeElement) Click(context.Context) error {
	if e.err != nil {
		return e.err
	}
	e.clicked++
	return nil
}

type query struct {
	parent Element
	by     By
	value  string
}

type reply struct {
	elems []Element
	err   error
}

// fakeDriver answers lookups from a script and records what it was asked.
type fakeDriver struct {
	mu       sync.Mutex
	script   map[By]map[string]reply
	queries  []query
	urls     []string
	waits    []string
	waitErr  error
	active   Element
	sequence []*actions.Sequence
	logs     []LogEntry
	closed   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{script: map[By]map[string]reply{ByCSS: {}, ByXPath: {}}}
}

func (d *fakeDriver) on(by By, value string, elems ...Element) *fakeDriver {
	d.script[by][value] = reply{elems: elems}
	return d
}

func (d *fakeDriver) fail(by By, value string, err error) *fakeDriver {
	d.script[by][value] = reply{err: err}
	return d
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	return nil
}

func (d *fakeDriver) FindElements(_ context.Context, parent Element, by By, value string) ([]Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, query{parent, by, value})
	r, ok := d.script[by][value]
	if !ok {
		return nil, fmt.Errorf("fake: %s %q: %w", by, value, ErrInvalidSelector)
	}
	return r.elems, r.err
}

func (d *fakeDriver) WaitVisible(ctx context.Context, xpath string, timeout, interval time.Duration) error {
	d.mu.Lock()
	d.waits = append(d.waits, xpath)
	err := d.waitErr
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := d.script[ByXPath][xpath]; ok {
		return nil
	}
	select {
	case <-time.After(timeout):
		return fmt.Errorf("fake: %s never became visible: %w", xpath, ErrWaitTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *fakeDriver) ActiveElement(context.Context) (Element, error) {
	if d.active == nil {
		return nil, fmt.Errorf("fake: no active element")
	}
	return d.active, nil
}

func (d *fakeDriver) Perform(_ context.Context, seq *actions.Sequence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sequence = append(d.sequence, seq)
	return nil
}

func (d *fakeDriver) ConsoleLogs(context.Context) ([]LogEntry, error) {
	logs := d.logs
	d.logs = nil
	return logs, nil
}

func (d *fakeDriver) Close() error {
	d.closed++
	return nil
}

// dialerFor returns a Dialer handing out d and counting its calls.
func dialerFor(d Driver, calls *int) Dialer {
	return func(context.Context, Capabilities) (Driver, error) {
		*calls++
		return d, nil
	}
}
