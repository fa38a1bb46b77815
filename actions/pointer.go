package actions

import (
	"encoding/json"
	"fmt"
	"time"
)

// PointerKind is the kind of device behind a pointer input source.
type PointerKind string

// Pointer kinds.
const (
	Mouse PointerKind = "mouse"
	Touch PointerKind = "touch"
	Pen   PointerKind = "pen"
)

func (k PointerKind) valid() bool {
	switch k {
	case Mouse, Touch, Pen:
		return true
	}
	return false
}

// Pointer is a pointer input source and the actions queued on it. The
// builder methods append to Actions and return the receiver so that calls
// can be chained.
type Pointer struct {
	ID      string
	Kind    PointerKind
	Actions []Action
}

// NewPointer returns an empty pointer source. An empty id defaults to the
// kind's name.
func NewPointer(id string, kind PointerKind) *Pointer {
	if id == "" {
		id = string(kind)
	}
	return &Pointer{ID: id, Kind: kind}
}

// MoveTo moves the pointer to (x, y) in viewport coordinates.
func (p *Pointer) MoveTo(x, y int) *Pointer {
	return p.Move(DefaultMoveDuration, x, y, Viewport)
}

// Move moves the pointer to (x, y) in the given origin over duration d.
func (p *Pointer) Move(d time.Duration, x, y int, origin Origin) *Pointer {
	p.Actions = append(p.Actions, Action{Type: PointerMove, Duration: d, X: x, Y: y, Origin: origin})
	return p
}

// Down presses button.
func (p *Pointer) Down(button Button) *Pointer {
	p.Actions = append(p.Actions, Action{Type: PointerDown, Button: button})
	return p
}

// Up releases button.
func (p *Pointer) Up(button Button) *Pointer {
	p.Actions = append(p.Actions, Action{Type: PointerUp, Button: button})
	return p
}

// Click presses and releases button at the current position.
func (p *Pointer) Click(button Button) *Pointer {
	return p.Down(button).Up(button)
}

// Pause idles the source for d.
func (p *Pointer) Pause(d time.Duration) *Pointer {
	p.Actions = append(p.Actions, Action{Type: Pause, Duration: d})
	return p
}

// Cancel cancels the current pointer interaction.
func (p *Pointer) Cancel() *Pointer {
	p.Actions = append(p.Actions, Action{Type: PointerCancel})
	return p
}

// Reset drops all queued actions.
func (p *Pointer) Reset() {
	p.Actions = p.Actions[:0]
}

// MarshalJSON encodes the source as a W3C pointer input source.
func (p *Pointer) MarshalJSON() ([]byte, error) {
	if !p.Kind.valid() {
		return nil, fmt.Errorf("actions: invalid pointer kind %q", p.Kind)
	}
	return json.Marshal(map[string]interface{}{
		"type":       "pointer",
		"id":         p.ID,
		"parameters": map[string]string{"pointerType": string(p.Kind)},
		"actions":    p.Actions,
	})
}
