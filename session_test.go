package world

import (
	"context"
	"errors"
	"testing"
)

func TestSessionSharesDriver(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	calls := 0
	sess := NewSession(dialerFor(d, &calls), DefaultCapabilities())
	defer sess.Close()

	b1, err := New(ctx, sess, Config{BaseURL: "http://a"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	b2, err := New(ctx, sess, Config{BaseURL: "http://b"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if b1.Driver() != b2.Driver() {
		t.Errorf("Browsers on one Session have different Drivers: %v and %v", b1.Driver(), b2.Driver())
	}
	if b1.Driver() != Driver(d) {
		t.Errorf("Driver() = %v, want the dialed driver %v", b1.Driver(), d)
	}
	if calls != 1 {
		t.Errorf("Session dialed %d times, want 1", calls)
	}
	if b1.Config().BaseURL == b2.Config().BaseURL {
		t.Errorf("Browsers share a configuration: %+v", b1.Config())
	}
}

func TestSessionDialError(t *testing.T) {
	boom := errors.New("chromedriver not found")
	calls := 0
	sess := NewSession(func(context.Context, Capabilities) (Driver, error) {
		calls++
		return nil, boom
	}, DefaultCapabilities())

	for i := 0; i < 2; i++ {
		if _, err := New(context.Background(), sess, Config{}); err != boom {
			t.Errorf("New returned error %v, want %v", err, boom)
		}
	}
	if calls != 1 {
		t.Errorf("Session dialed %d times, want 1", calls)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver().on(ByCSS, "body", &fakeElement{text: "x"})
	calls := 0
	sess := NewSession(dialerFor(d, &calls), DefaultCapabilities())

	b, err := New(ctx, sess, Config{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if d.closed != 1 {
		t.Errorf("Driver closed %d times, want 1", d.closed)
	}
	if b.Driver() != nil {
		t.Errorf("Driver() = %v after Close, want nil", b.Driver())
	}
	if _, err := b.PageText(ctx, "body"); err != ErrSessionClosed {
		t.Errorf("PageText after Close returned error %v, want %v", err, ErrSessionClosed)
	}
	if _, err := New(ctx, sess, Config{}); err != ErrSessionClosed {
		t.Errorf("New after Close returned error %v, want %v", err, ErrSessionClosed)
	}
}

func TestDefaultCapabilities(t *testing.T) {
	caps := DefaultCapabilities()
	if caps.Browser != "chrome" || caps.ConsoleLogLevel != "ALL" {
		t.Errorf("DefaultCapabilities() = %+v, want chrome with ALL console logging", caps)
	}
}
