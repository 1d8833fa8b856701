package provider

import (
	"sync"
	"time"

	"nuha.dev/loctrack/internal/fix"
)

// Throttle shapes a raw fix stream to a Request. Deliveries are spaced at
// least MinUpdateInterval apart; a fix arriving too early is held, replacing
// any older held fix, and flushed when the spacing allows or MaxUpdateDelay
// after it arrived, whichever is first.
type Throttle struct {
	req     Request
	out     func(fix.Fix)
	mu      sync.Mutex
	last    time.Time
	pending *fix.Fix
	timer   *time.Timer
	stopped bool
}

func NewThrottle(req Request, out func(fix.Fix)) *Throttle {
	return &Throttle{req: req, out: out}
}

func (t *Throttle) Offer(f fix.Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	now := time.Now()
	if t.last.IsZero() || now.Sub(t.last) >= t.req.MinUpdateInterval {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.pending = nil
		t.deliver(now, f)
		return
	}
	t.pending = &f
	if t.timer == nil {
		wait := t.last.Add(t.req.MinUpdateInterval).Sub(now)
		if t.req.MaxUpdateDelay > 0 && t.req.MaxUpdateDelay < wait {
			wait = t.req.MaxUpdateDelay
		}
		t.timer = time.AfterFunc(wait, t.flush)
	}
}

func (t *Throttle) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = nil
	if t.stopped || t.pending == nil {
		return
	}
	f := *t.pending
	t.pending = nil
	t.deliver(time.Now(), f)
}

func (t *Throttle) deliver(now time.Time, f fix.Fix) {
	t.last = now
	t.out(f)
}

// Stop drops any held fix; nothing is delivered after Stop returns.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
