package events

import (
	"context"
	"testing"
)

func TestRecorderKeepsLastPerTopic(t *testing.T) {
	eb, err := New()
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(eb, "test-recorder")
	ctx := context.Background()
	eb.Emit(ctx, TRACKING_STARTED, Lifecycle{Intent: true, State: "running"})
	eb.Emit(ctx, TRACKING_STOPPED, Lifecycle{Intent: false, State: "stopped", Message: "first"})
	eb.Emit(ctx, TRACKING_STOPPED, Lifecycle{Intent: false, State: "stopped", Message: "second"})

	last := r.Last()
	if len(last) != 2 {
		t.Fatalf("got %d topics, want 2", len(last))
	}
	lc, ok := last[TRACKING_STOPPED].Data.(Lifecycle)
	if !ok || lc.Message != "second" {
		t.Errorf("unexpected last stopped event %+v", last[TRACKING_STOPPED])
	}
}

func TestUnknownTopicDoesNotPanic(t *testing.T) {
	eb, err := New()
	if err != nil {
		t.Fatal(err)
	}
	eb.Emit(context.Background(), "no.such.topic", nil)
	var nilBus *Bus
	nilBus.Emit(context.Background(), TRACKING_STARTED, nil)
}
