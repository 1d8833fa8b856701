package natsfeed

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/provider"
)

func TestUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	f := NewFeed(&FeedConfig{URL: "nats://" + addr, Subject: "loc"})
	_, err = f.Subscribe(context.Background(), provider.DefaultRequest(), func(fix.Fix) {})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestHandleDecodesPayload(t *testing.T) {
	var got []fix.Fix
	s := &Subscription{throttle: provider.NewThrottle(provider.Request{}, func(f fix.Fix) { got = append(got, f) }), log: log.DefaultLogger}
	s.handle(&nats.Msg{Data: []byte(`{"latitude":1.5,"longitude":2.5,"accuracy":3,"altitude":4,"speed":5,"timestamp":1700000000000}`)})
	s.handle(&nats.Msg{Data: []byte(`not json`)})
	if len(got) != 1 {
		t.Fatalf("got %d fixes, want 1", len(got))
	}
	if got[0].Latitude != 1.5 || got[0].Time.UnixMilli() != 1700000000000 {
		t.Errorf("unexpected fix %+v", got[0])
	}
}
