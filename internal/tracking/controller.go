package tracking

import (
	"context"
	"sync"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/events"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/notify"
	"nuha.dev/loctrack/internal/permission"
	"nuha.dev/loctrack/internal/provider"
)

type State int

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Intent is the durable "should be tracking" flag. Write returns only once
// the value is committed.
type Intent interface {
	Read(ctx context.Context) (bool, error)
	Write(ctx context.Context, v bool) error
}

// Subscriber receives forwarded fixes. Push is called with the controller
// lock held and must not block; returning true detaches the subscriber.
type Subscriber interface {
	Push(f fix.Fix) (closed bool)
}

type ControllerConfig struct {
	Request      provider.Request
	Notification notify.Notification
}

func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{Request: provider.DefaultRequest(), Notification: notify.Tracking()}
}

// Controller is the single authority over location acquisition. Start, Stop
// and Shutdown are serialized by op; mu guards the fields read by fix
// delivery and is never held across provider or store calls.
type Controller struct {
	op sync.Mutex

	mu         sync.Mutex
	state      State
	session    uint64
	sub        provider.Subscription
	subscriber Subscriber

	intent    Intent
	perm      permission.Checker
	provider  provider.Provider
	indicator notify.Indicator
	bus       *events.Bus
	config    *ControllerConfig
	log       log.Logger
}

func NewController(intent Intent, perm permission.Checker, prov provider.Provider, indicator notify.Indicator, bus *events.Bus, config *ControllerConfig) *Controller {
	c := &Controller{}
	c.intent = intent
	c.perm = perm
	c.provider = prov
	c.indicator = indicator
	c.bus = bus
	if config == nil {
		config = DefaultControllerConfig()
	}
	c.config = config
	c.log = log.DefaultLogger
	c.log.Context = log.NewContext(nil).Str("module", "tracking").Str("provider", prov.Name()).Value()
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) MarshalObject(e *log.Entry) {
	e.Str("state", c.State().String())
}

// IsActive reports the persisted intent, not the running state.
func (c *Controller) IsActive(ctx context.Context) (bool, error) {
	return c.intent.Read(ctx)
}

// Start is a no-op unless stopped. A permission or provider failure leaves the
// intent set so a later Start can resume without resetting it.
func (c *Controller) Start(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	if s := c.State(); s != Stopped {
		c.log.Debug().Str("state", s.String()).Msg("start ignored, already active")
		return nil
	}

	if err := c.intent.Write(ctx, true); err != nil {
		c.log.Error().Err(err).Msg("error persisting tracking intent, start aborted")
		return newError(PersistenceFailure, "tracking intent not persisted", err)
	}
	c.setState(Starting)

	granted, err := c.perm.Granted(ctx)
	if err != nil || !granted {
		c.setState(Stopped)
		e := newError(PermissionDenied, "location permission not granted", err)
		c.log.Error().Err(e).Str("event", events.TRACKING_PERMISSION_DENIED).Msg("")
		c.bus.Emit(ctx, events.TRACKING_PERMISSION_DENIED, events.Lifecycle{Intent: true, State: Stopped.String(), Message: e.Error()})
		return e
	}

	if err := c.indicator.Publish(ctx, c.config.Notification); err != nil {
		c.setState(Stopped)
		c.log.Error().Err(err).Msg("error publishing tracking notification")
		return newError(IndicatorFailure, "tracking notification not published", err)
	}

	c.mu.Lock()
	c.session++
	session := c.session
	c.mu.Unlock()

	c.log.Info().EmbedObject(c.config.Request).Msg("requesting location updates")
	sub, err := c.provider.Subscribe(ctx, c.config.Request, c.sessionFix(session))
	if err != nil {
		if werr := c.indicator.Withdraw(ctx, c.config.Notification.ID); werr != nil {
			c.log.Error().Err(werr).Msg("error withdrawing tracking notification")
		}
		c.setState(Stopped)
		e := newError(ProviderUnavailable, "error requesting location updates", err)
		c.log.Error().Err(e).Str("event", events.TRACKING_PROVIDER_FAILED).Msg("")
		c.bus.Emit(ctx, events.TRACKING_PROVIDER_FAILED, events.Lifecycle{Intent: true, State: Stopped.String(), Message: e.Error()})
		return e
	}

	c.mu.Lock()
	c.sub = sub
	c.state = Running
	c.mu.Unlock()
	c.log.Info().Str("event", events.TRACKING_STARTED).Msg("location updates requested successfully")
	c.bus.Emit(ctx, events.TRACKING_STARTED, events.Lifecycle{Intent: true, State: Running.String()})
	return nil
}

// Stop clears the intent and releases the provider session. When already
// stopped it only clears an intent left pending by a failed start.
func (c *Controller) Stop(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() == Stopped {
		intent, err := c.intent.Read(ctx)
		if err != nil {
			c.log.Error().Err(err).Msg("error reading tracking intent")
			return newError(PersistenceFailure, "tracking intent unreadable", err)
		}
		if !intent {
			return nil
		}
		if err := c.intent.Write(ctx, false); err != nil {
			c.log.Error().Err(err).Msg("error clearing pending tracking intent")
			return newError(PersistenceFailure, "tracking intent not persisted", err)
		}
		c.log.Info().Msg("pending tracking intent cleared")
		return nil
	}

	if err := c.intent.Write(ctx, false); err != nil {
		c.log.Error().Err(err).Msg("error persisting tracking intent, stop aborted")
		return newError(PersistenceFailure, "tracking intent not persisted", err)
	}
	c.release(ctx)
	c.log.Info().Str("event", events.TRACKING_STOPPED).Msg("location updates stopped")
	c.bus.Emit(ctx, events.TRACKING_STOPPED, events.Lifecycle{Intent: false, State: Stopped.String()})
	return nil
}

// Shutdown releases the provider session on process teardown. The intent is
// left as is so the next boot resumes tracking.
func (c *Controller) Shutdown(ctx context.Context) {
	c.op.Lock()
	defer c.op.Unlock()
	if c.State() == Stopped {
		return
	}
	c.release(ctx)
	c.log.Info().Msg("tracking released for shutdown")
}

func (c *Controller) release(ctx context.Context) {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	// fixes still in flight from the old session are dropped
	c.session++
	c.mu.Unlock()

	if sub != nil {
		if err := sub.Cancel(); err != nil {
			c.log.Error().Err(err).Msg("error cancelling location updates")
		}
	}
	if err := c.indicator.Withdraw(ctx, c.config.Notification.ID); err != nil {
		c.log.Error().Err(err).Msg("error withdrawing tracking notification")
	}
	c.setState(Stopped)
}

// OnPermissionGranted resumes tracking when the intent survived a denied start.
func (c *Controller) OnPermissionGranted(ctx context.Context) error {
	intent, err := c.intent.Read(ctx)
	if err != nil {
		return newError(PersistenceFailure, "tracking intent unreadable", err)
	}
	if !intent || c.State() != Stopped {
		return nil
	}
	c.log.Info().Msg("permission granted with pending intent, resuming")
	return c.Start(ctx)
}

// Attach makes sub the receiver of forwarded fixes, replacing any previous one.
func (c *Controller) Attach(sub Subscriber) {
	c.mu.Lock()
	c.subscriber = sub
	c.mu.Unlock()
}

// Detach removes sub if it is still the attached subscriber.
func (c *Controller) Detach(sub Subscriber) {
	c.mu.Lock()
	if c.subscriber == sub {
		c.subscriber = nil
	}
	c.mu.Unlock()
}

// OnFix forwards f to the attached subscriber. Without one the fix is dropped.
func (c *Controller) OnFix(f fix.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forward(f)
}

func (c *Controller) sessionFix(session uint64) func(fix.Fix) {
	return func(f fix.Fix) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if session != c.session {
			return
		}
		c.forward(f)
	}
}

func (c *Controller) forward(f fix.Fix) {
	if c.subscriber == nil {
		c.log.Trace().EmbedObject(f).Msg("no subscriber, fix dropped")
		return
	}
	c.log.Debug().EmbedObject(f).Msg("location update")
	if closed := c.subscriber.Push(f); closed {
		c.subscriber = nil
	}
}
