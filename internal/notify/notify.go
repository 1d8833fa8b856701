package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/events"
)

const (
	CHANNEL_ID   string = "location_tracking_channel"
	CHANNEL_NAME string = "Location Tracking"
	TRACKING_ID  int    = 12345
)

type Importance int

const (
	ImportanceLow Importance = iota
	ImportanceDefault
	ImportanceHigh
)

type Notification struct {
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Importance  Importance `json:"importance"`
	Ongoing     bool       `json:"ongoing"`
	PostedAt    time.Time  `json:"posted_at"`
}

// Tracking is the persistent notice shown while location is being collected.
func Tracking() Notification {
	return Notification{
		ChannelID:   CHANNEL_ID,
		ChannelName: CHANNEL_NAME,
		ID:          TRACKING_ID,
		Title:       "Location Tracking",
		Body:        "Tracking your location in background",
		Importance:  ImportanceHigh,
		Ongoing:     true,
	}
}

func (n Notification) MarshalObject(e *log.Entry) {
	e.Str("channel_id", n.ChannelID).Int("notification_id", n.ID).Bool("ongoing", n.Ongoing)
}

// Indicator shows and removes the tracking-active notice.
type Indicator interface {
	Publish(ctx context.Context, n Notification) error
	Withdraw(ctx context.Context, id int) error
}

var ErrOngoing = errors.New("ongoing notification cannot be dismissed")

// Board is an in-process notification area.
type Board struct {
	mu     sync.Mutex
	active map[int]Notification
	bus    *events.Bus
	log    log.Logger
}

func NewBoard(bus *events.Bus) *Board {
	b := &Board{active: make(map[int]Notification), bus: bus}
	b.log = log.DefaultLogger
	b.log.Context = log.NewContext(nil).Str("module", "notify").Value()
	return b
}

// Publish replaces any notification with the same id.
func (b *Board) Publish(ctx context.Context, n Notification) error {
	n.PostedAt = time.Now().UTC()
	b.mu.Lock()
	b.active[n.ID] = n
	b.mu.Unlock()
	b.log.Info().Str("event", events.NOTIFICATION_POSTED).EmbedObject(n).Msg(n.Title)
	b.bus.Emit(ctx, events.NOTIFICATION_POSTED, n)
	return nil
}

// Withdraw of an unknown id is a no-op.
func (b *Board) Withdraw(ctx context.Context, id int) error {
	b.mu.Lock()
	n, ok := b.active[id]
	delete(b.active, id)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	b.log.Info().Str("event", events.NOTIFICATION_WITHDRAWN).EmbedObject(n).Msg("")
	b.bus.Emit(ctx, events.NOTIFICATION_WITHDRAWN, n)
	return nil
}

// Dismiss is the user-initiated removal; ongoing notifications refuse it.
func (b *Board) Dismiss(ctx context.Context, id int) error {
	b.mu.Lock()
	n, ok := b.active[id]
	b.mu.Unlock()
	if ok && n.Ongoing {
		return ErrOngoing
	}
	return b.Withdraw(ctx, id)
}

func (b *Board) Active() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, 0, len(b.active))
	for _, n := range b.active {
		out = append(out, n)
	}
	return out
}
