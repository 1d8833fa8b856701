package notify

import (
	"context"
	"testing"
)

func TestPublishWithdraw(t *testing.T) {
	ctx := context.Background()
	b := NewBoard(nil)
	if err := b.Publish(ctx, Tracking()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(ctx, Tracking()); err != nil {
		t.Fatal(err)
	}
	if n := len(b.Active()); n != 1 {
		t.Fatalf("republish should replace, got %d active", n)
	}
	if err := b.Withdraw(ctx, TRACKING_ID); err != nil {
		t.Fatal(err)
	}
	if err := b.Withdraw(ctx, TRACKING_ID); err != nil {
		t.Errorf("second withdraw returned %v", err)
	}
	if n := len(b.Active()); n != 0 {
		t.Errorf("got %d active after withdraw", n)
	}
}

func TestOngoingNotDismissible(t *testing.T) {
	ctx := context.Background()
	b := NewBoard(nil)
	_ = b.Publish(ctx, Tracking())
	if err := b.Dismiss(ctx, TRACKING_ID); err != ErrOngoing {
		t.Errorf("expected ErrOngoing, got %v", err)
	}
	n := Notification{ID: 7, Title: "plain"}
	_ = b.Publish(ctx, n)
	if err := b.Dismiss(ctx, 7); err != nil {
		t.Errorf("plain notification should be dismissible: %v", err)
	}
	if len(b.Active()) != 1 {
		t.Error("only the ongoing notification should remain")
	}
}

func TestTrackingNotice(t *testing.T) {
	n := Tracking()
	if n.Importance != ImportanceHigh || !n.Ongoing || n.ChannelID != CHANNEL_ID {
		t.Errorf("unexpected tracking notice %+v", n)
	}
}
