package reconcile

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/events"
)

type Signal int

const (
	BootCompleted Signal = iota
	QuickBootPowerOn
)

func (s Signal) String() string {
	switch s {
	case BootCompleted:
		return "boot_completed"
	case QuickBootPowerOn:
		return "quickboot_poweron"
	default:
		return "unknown"
	}
}

type Intent interface {
	Read(ctx context.Context) (bool, error)
}

type Starter interface {
	Start(ctx context.Context) error
}

type Reconciler struct {
	intent  Intent
	starter Starter
	bus     *events.Bus
	log     log.Logger
	// restart signals, SIGHUP when nil
	sigs []os.Signal
}

func NewReconciler(intent Intent, starter Starter, bus *events.Bus) *Reconciler {
	r := &Reconciler{}
	r.intent = intent
	r.starter = starter
	r.bus = bus
	r.sigs = []os.Signal{syscall.SIGHUP}
	r.log = log.DefaultLogger
	r.log.Context = log.NewContext(nil).Str("module", "reconcile").Value()
	return r
}

// Reconcile resumes tracking when the persisted intent is set. Failures are
// logged only; there is no caller to report to.
func (r *Reconciler) Reconcile(ctx context.Context, sig Signal) {
	intent, err := r.intent.Read(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("signal", sig.String()).Msg("error reading tracking intent")
		return
	}
	if !intent {
		r.log.Debug().Str("signal", sig.String()).Msg("tracking intent not set")
		return
	}
	r.log.Info().Str("signal", sig.String()).Msg("tracking intent set, resuming")
	err = r.starter.Start(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("signal", sig.String()).Msg("error resuming tracking")
		return
	}
	r.log.Info().Str("event", events.RECONCILE_RESUMED).Str("signal", sig.String()).Msg("")
	r.bus.Emit(ctx, events.RECONCILE_RESUMED, events.Lifecycle{Intent: true, State: sig.String()})
}

// Run reconciles once for agent start, then again on every restart signal
// until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, r.sigs...)
	defer signal.Stop(ch)

	r.Reconcile(ctx, BootCompleted)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			r.Reconcile(ctx, QuickBootPowerOn)
		}
	}
}
