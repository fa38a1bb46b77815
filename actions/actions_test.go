package actions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, v interface{}) interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal(%+v) returned error: %v", v, err)
	}
	var got interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) returned error: %v", data, err)
	}
	return got
}

func TestSequenceJSON(t *testing.T) {
	mouse := NewPointer("", Mouse).MoveTo(10, 20).Down(LeftButton).Pause(50 * time.Millisecond).Up(LeftButton)
	got := decode(t, NewSequence(mouse))

	want := map[string]interface{}{
		"actions": []interface{}{
			map[string]interface{}{
				"type":       "pointer",
				"id":         "mouse",
				"parameters": map[string]interface{}{"pointerType": "mouse"},
				"actions": []interface{}{
					map[string]interface{}{"type": "pointerMove", "duration": 250.0, "x": 10.0, "y": 20.0, "origin": "viewport"},
					map[string]interface{}{"type": "pointerDown", "button": 0.0},
					map[string]interface{}{"type": "pause", "duration": 50.0},
					map[string]interface{}{"type": "pointerUp", "button": 0.0},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json.Marshal(sequence) returned diff (-want/+got):\n%s", diff)
	}
}

func TestSequenceSkipsIdleSources(t *testing.T) {
	pen := NewPointer("pen1", Pen)
	touch := NewPointer("finger", Touch).Click(LeftButton)
	s := NewSequence(pen, touch)

	got := decode(t, s).(map[string]interface{})["actions"].([]interface{})
	if len(got) != 1 {
		t.Fatalf("encoded %d sources, want 1: %v", len(got), got)
	}
	if id := got[0].(map[string]interface{})["id"]; id != "finger" {
		t.Errorf("encoded source id = %v, want %q", id, "finger")
	}
	if s.Len() != 2 {
		t.Errorf("s.Len() = %d, want 2", s.Len())
	}
}

func TestInvalidPointerKind(t *testing.T) {
	p := NewPointer("stylus", PointerKind("stylus")).Click(LeftButton)
	if _, err := json.Marshal(NewSequence(p)); err == nil {
		t.Fatalf("json.Marshal() with pointer kind %q returned nil error", p.Kind)
	}
}

func TestReset(t *testing.T) {
	p := NewPointer("", Mouse).MoveTo(1, 1).Click(RightButton)
	if len(p.Actions) != 3 {
		t.Fatalf("len(p.Actions) = %d, want 3", len(p.Actions))
	}
	p.Reset()
	if len(p.Actions) != 0 {
		t.Errorf("len(p.Actions) after Reset = %d, want 0", len(p.Actions))
	}
}
