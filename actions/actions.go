// Package actions builds W3C WebDriver input action sequences for pointer
// devices.
//
// A Sequence is the payload of a single "perform actions" command. Backends
// that speak the WebDriver protocol send it as JSON; other backends replay the
// individual Actions against their own input APIs.
package actions

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the type of a single input action.
type Type string

// The action types used by pointer input sources.
const (
	PointerMove   Type = "pointerMove"
	PointerDown   Type = "pointerDown"
	PointerUp     Type = "pointerUp"
	PointerCancel Type = "pointerCancel"
	Pause         Type = "pause"
)

// Button is a pointer button, numbered as in W3C WebDriver.
type Button int

// Pointer buttons.
const (
	LeftButton Button = iota
	MiddleButton
	RightButton
)

// Origin is the coordinate space of a pointer move.
type Origin string

const (
	// Viewport moves are relative to the top-left corner of the viewport.
	Viewport Origin = "viewport"
	// Relative moves are relative to the current pointer position.
	Relative Origin = "pointer"
)

// DefaultMoveDuration is the duration of a pointer move when none is given.
const DefaultMoveDuration = 250 * time.Millisecond

// Action is a single step performed by an input source.
type Action struct {
	Type     Type
	Duration time.Duration
	// X and Y are only meaningful for PointerMove.
	X, Y   int
	Origin Origin
	// Button is only meaningful for PointerDown and PointerUp.
	Button Button
}

// MarshalJSON encodes the action with only the fields its type uses.
func (a Action) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": a.Type}
	switch a.Type {
	case PointerMove:
		origin := a.Origin
		if origin == "" {
			origin = Viewport
		}
		m["duration"] = a.Duration.Milliseconds()
		m["x"] = a.X
		m["y"] = a.Y
		m["origin"] = origin
	case PointerDown, PointerUp:
		m["button"] = int(a.Button)
	case Pause:
		m["duration"] = a.Duration.Milliseconds()
	case PointerCancel:
	default:
		return nil, fmt.Errorf("actions: unknown action type %q", a.Type)
	}
	return json.Marshal(m)
}

// Sequence is the set of input sources dispatched by one perform command.
type Sequence struct {
	Pointers []*Pointer
}

// NewSequence returns a sequence over the given pointer sources.
func NewSequence(pointers ...*Pointer) *Sequence {
	return &Sequence{Pointers: pointers}
}

// Len returns the number of ticks in the sequence, which is the length of its
// longest source.
func (s *Sequence) Len() int {
	n := 0
	for _, p := range s.Pointers {
		if len(p.Actions) > n {
			n = len(p.Actions)
		}
	}
	return n
}

// MarshalJSON encodes the sequence as the body of a W3C "perform actions"
// request.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	sources := make([]*Pointer, 0, len(s.Pointers))
	for _, p := range s.Pointers {
		if len(p.Actions) == 0 {
			continue
		}
		sources = append(sources, p)
	}
	return json.Marshal(map[string]interface{}{"actions": sources})
}
