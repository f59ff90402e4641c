package events

import (
	"testing"

	"promisevault/core/types"
)

type testEvent struct{ evt *types.Event }

func (e testEvent) EventType() string   { return e.evt.Type }
func (e testEvent) Event() *types.Event { return e.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestBufferDrainAndReset(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent{evt: &types.Event{Type: "a"}})
	buf.Emit(bareEvent{})
	buf.Emit(testEvent{evt: &types.Event{Type: "b"}})
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}
	drained := buf.Drain()
	if len(drained) != 2 || drained[0].Type != "a" || drained[1].Type != "b" {
		t.Fatalf("unexpected drain result: %+v", drained)
	}
	if buf.Len() != 0 {
		t.Fatalf("drain must empty the buffer")
	}

	buf.Emit(testEvent{evt: &types.Event{Type: "c"}})
	buf.Reset()
	if got := buf.Drain(); len(got) != 0 {
		t.Fatalf("reset must discard events, got %+v", got)
	}
}
