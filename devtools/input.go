package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"

	"github.com/wanmail/world/actions"
)

// pointerState is the position and pressed buttons of one input source. It
// persists across Perform calls, like the input state of a WebDriver session.
type pointerState struct {
	x, y    float64
	pressed map[actions.Button]bool
}

// buttons returns the pressed buttons as a DevTools bit field.
func (s *pointerState) buttons() int64 {
	var b int64
	for button := range s.pressed {
		switch button {
		case actions.LeftButton:
			b |= 1
		case actions.RightButton:
			b |= 2
		case actions.MiddleButton:
			b |= 4
		}
	}
	return b
}

// held returns one pressed button for move events, preferring the left one.
func (s *pointerState) held() input.MouseButton {
	for _, b := range []actions.Button{actions.LeftButton, actions.MiddleButton, actions.RightButton} {
		if s.pressed[b] {
			return mouseButton(b)
		}
	}
	return input.None
}

func mouseButton(b actions.Button) input.MouseButton {
	switch b {
	case actions.LeftButton:
		return input.Left
	case actions.MiddleButton:
		return input.Middle
	case actions.RightButton:
		return input.Right
	}
	return input.None
}

// mouseEvent is one step of a replayed sequence: either an event to
// dispatch or a pause.
type mouseEvent struct {
	Type       input.MouseType
	X, Y       float64
	Button     input.MouseButton
	Buttons    int64
	ClickCount int64
	Pause      time.Duration
}

// plan turns seq into mouse events tick by tick, updating the pointer
// states. Pressing a held button or releasing a free one does nothing.
func plan(states map[string]*pointerState, seq *actions.Sequence) ([]mouseEvent, error) {
	// Validates action types and pointer kinds.
	if _, err := json.Marshal(seq); err != nil {
		return nil, err
	}
	for _, p := range seq.Pointers {
		if p.Kind != actions.Mouse && len(p.Actions) > 0 {
			return nil, fmt.Errorf("devtools: %s pointers are not supported", p.Kind)
		}
	}

	var events []mouseEvent
	for tick := 0; tick < seq.Len(); tick++ {
		var pause time.Duration
		for _, p := range seq.Pointers {
			if tick >= len(p.Actions) {
				continue
			}
			s, ok := states[p.ID]
			if !ok {
				s = &pointerState{pressed: make(map[actions.Button]bool)}
				states[p.ID] = s
			}

			a := p.Actions[tick]
			switch a.Type {
			case actions.PointerMove:
				if a.Origin == actions.Relative {
					s.x += float64(a.X)
					s.y += float64(a.Y)
				} else {
					s.x, s.y = float64(a.X), float64(a.Y)
				}
				events = append(events, mouseEvent{Type: input.MouseMoved, X: s.x, Y: s.y, Button: s.held(), Buttons: s.buttons()})
			case actions.PointerDown:
				if s.pressed[a.Button] {
					continue
				}
				s.pressed[a.Button] = true
				events = append(events, mouseEvent{Type: input.MousePressed, X: s.x, Y: s.y, Button: mouseButton(a.Button), Buttons: s.buttons(), ClickCount: 1})
			case actions.PointerUp:
				if !s.pressed[a.Button] {
					continue
				}
				delete(s.pressed, a.Button)
				events = append(events, mouseEvent{Type: input.MouseReleased, X: s.x, Y: s.y, Button: mouseButton(a.Button), Buttons: s.buttons(), ClickCount: 1})
			case actions.PointerCancel:
				for b := range s.pressed {
					delete(s.pressed, b)
					events = append(events, mouseEvent{Type: input.MouseReleased, X: s.x, Y: s.y, Button: mouseButton(b), Buttons: s.buttons(), ClickCount: 1})
				}
			case actions.Pause:
				if a.Duration > pause {
					pause = a.Duration
				}
			}
		}
		if pause > 0 {
			events = append(events, mouseEvent{Pause: pause})
		}
	}
	return events, nil
}

func dispatch(ctx context.Context, ev mouseEvent) error {
	if ev.Pause > 0 {
		t := time.NewTimer(ev.Pause)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	p := input.DispatchMouseEvent(ev.Type, ev.X, ev.Y).
		WithButton(ev.Button).
		WithButtons(ev.Buttons)
	if ev.ClickCount > 0 {
		p = p.WithClickCount(ev.ClickCount)
	}
	return p.Do(ctx)
}

// Perform replays seq with DevTools input events.
func (d *Driver) Perform(ctx context.Context, seq *actions.Sequence) error {
	d.mu.Lock()
	events, err := plan(d.pointers, seq)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return d.run(ctx, func(ctx context.Context) error {
		for _, ev := range events {
			if err := dispatch(ctx, ev); err != nil {
				return fmt.Errorf("devtools: dispatching %s: %w", ev.Type, err)
			}
		}
		return nil
	})
}

// click presses and releases the left button at (x, y).
func click(ctx context.Context, x, y float64) error {
	for _, ev := range []mouseEvent{
		{Type: input.MouseMoved, X: x, Y: y, Button: input.None},
		{Type: input.MousePressed, X: x, Y: y, Button: input.Left, Buttons: 1, ClickCount: 1},
		{Type: input.MouseReleased, X: x, Y: y, Button: input.Left, ClickCount: 1},
	} {
		if err := dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
