package events

import (
	"context"
	"sync"

	"github.com/mustafaturan/bus/v3"
	"github.com/mustafaturan/monoton/v2"
	"github.com/mustafaturan/monoton/v2/sequencer"
	"github.com/phuslu/log"
)

const (
	TRACKING_STARTED           string = "tracking.started"
	TRACKING_STOPPED           string = "tracking.stopped"
	TRACKING_PERMISSION_DENIED string = "tracking.permission_denied"
	TRACKING_PROVIDER_FAILED   string = "tracking.provider_failed"
	NOTIFICATION_POSTED        string = "notification.posted"
	NOTIFICATION_WITHDRAWN     string = "notification.withdrawn"
	RECONCILE_RESUMED          string = "reconcile.resumed"
)

var Topics = []string{
	TRACKING_STARTED,
	TRACKING_STOPPED,
	TRACKING_PERMISSION_DENIED,
	TRACKING_PROVIDER_FAILED,
	NOTIFICATION_POSTED,
	NOTIFICATION_WITHDRAWN,
	RECONCILE_RESUMED,
}

// Lifecycle is the payload of tracking.* and reconcile.* events.
type Lifecycle struct {
	Intent  bool   `json:"intent"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type Event = bus.Event

// Bus is an in-process event bus. Handlers run synchronously in the
// emitting goroutine and must not block.
type Bus struct {
	b   *bus.Bus
	log log.Logger
}

// 2024-01-01 UTC in millis, monoton epoch
const initialTime uint64 = 1704067200000

func New() (*Bus, error) {
	m, err := monoton.New(sequencer.NewMillisecond(), uint64(1), initialTime)
	if err != nil {
		return nil, err
	}
	var idGenerator bus.Next = m.Next
	b, err := bus.NewBus(idGenerator)
	if err != nil {
		return nil, err
	}
	b.RegisterTopics(Topics...)
	eb := &Bus{b: b}
	eb.log = log.DefaultLogger
	eb.log.Context = log.NewContext(nil).Str("module", "events").Value()
	return eb, nil
}

// Emit never fails the caller; a rejected event is only logged.
func (eb *Bus) Emit(ctx context.Context, topic string, data interface{}) {
	if eb == nil {
		return
	}
	err := eb.b.Emit(ctx, topic, data)
	if err != nil {
		eb.log.Error().Err(err).Str("topic", topic).Msg("error emitting event")
	}
}

func (eb *Bus) Handle(key string, matcher string, fn func(ctx context.Context, e Event)) {
	eb.b.RegisterHandler(key, bus.Handler{Handle: fn, Matcher: matcher})
}

func (eb *Bus) Unhandle(key string) {
	eb.b.DeregisterHandler(key)
}

// Recorder keeps the last event per topic, for status reporting.
type Recorder struct {
	mu   sync.Mutex
	last map[string]Event
}

func NewRecorder(eb *Bus, key string) *Recorder {
	r := &Recorder{last: make(map[string]Event)}
	eb.Handle(key, ".*", func(_ context.Context, e Event) {
		r.mu.Lock()
		r.last[e.Topic] = e
		r.mu.Unlock()
	})
	return r
}

func (r *Recorder) Last() map[string]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Event, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}
