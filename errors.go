package world

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoElements is matched by errors from operations that need at least
	// one element and found none.
	ErrNoElements = errors.New("no elements found")
	// ErrInvalidSelector is matched by Driver errors for selectors the
	// engine cannot parse.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrWaitTimeout is matched by errors from waits that ran out of time.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrSessionClosed is returned once a Session has been closed.
	ErrSessionClosed = errors.New("session closed")
)

// NoElementsError reports a selector that matched nothing.
type NoElementsError struct {
	Op       string
	Selector string
}

func (e *NoElementsError) Error() string {
	if e.Op == "element" {
		return fmt.Sprintf("couldn't find element matching %q", e.Selector)
	}
	return fmt.Sprintf("%s: no elements found matching %q", e.Op, e.Selector)
}

func (e *NoElementsError) Is(target error) bool { return target == ErrNoElements }

// InvalidSelectorError reports a selector that no dialect could parse.
type InvalidSelectorError struct {
	Selector string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: not CSS, pseudo-CSS or XPath", e.Selector)
}

func (e *InvalidSelectorError) Is(target error) bool { return target == ErrInvalidSelector }

// TimeoutError reports a wait that did not see its element in time.
type TimeoutError struct {
	Selector string
	Timeout  time.Duration
	// Err is the error returned by the Driver, if any.
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for %q to be visible", e.Timeout, e.Selector)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }
