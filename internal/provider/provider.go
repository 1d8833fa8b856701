package provider

import (
	"context"
	"errors"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/fix"
)

type Priority int

const (
	HighAccuracy Priority = iota
	BalancedPowerAccuracy
	LowPower
	Passive
)

func (p Priority) String() string {
	switch p {
	case HighAccuracy:
		return "high_accuracy"
	case BalancedPowerAccuracy:
		return "balanced_power_accuracy"
	case LowPower:
		return "low_power"
	case Passive:
		return "passive"
	default:
		return "unknown"
	}
}

// Request describes how often and how precisely fixes are wanted.
type Request struct {
	Priority                Priority
	Interval                time.Duration
	MinUpdateInterval       time.Duration
	MaxUpdateDelay          time.Duration
	WaitForAccurateLocation bool
}

// DefaultRequest is the request used for background tracking.
func DefaultRequest() Request {
	return Request{
		Priority:                HighAccuracy,
		Interval:                10 * time.Second,
		MinUpdateInterval:       5 * time.Second,
		MaxUpdateDelay:          15 * time.Second,
		WaitForAccurateLocation: false,
	}
}

func (r Request) MarshalObject(e *log.Entry) {
	e.Str("priority", r.Priority.String()).Dur("interval", r.Interval).Dur("min_update_interval", r.MinUpdateInterval).Dur("max_update_delay", r.MaxUpdateDelay).Bool("wait_accurate", r.WaitForAccurateLocation)
}

var ErrUnavailable = errors.New("location provider unavailable")

// Provider emits fixes to onFix until the returned Subscription is cancelled.
// onFix is never called concurrently for one subscription.
type Provider interface {
	Name() string
	Subscribe(ctx context.Context, req Request, onFix func(fix.Fix)) (Subscription, error)
}

// Subscription releases a provider session. Cancel after the first call is a no-op.
type Subscription interface {
	Cancel() error
}
