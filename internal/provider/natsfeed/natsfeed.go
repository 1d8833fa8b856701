package natsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/provider"
)

type FeedConfig struct {
	URL     string
	Subject string
	Name    string
}

// Feed reads fixes published as onLocationUpdate payloads on a NATS subject.
type Feed struct {
	config *FeedConfig
	log    log.Logger
}

func NewFeed(config *FeedConfig) *Feed {
	f := &Feed{config: config}
	f.log = log.DefaultLogger
	f.log.Context = log.NewContext(nil).Str("module", "nats-feed").Str("subject", config.Subject).Value()
	return f
}

func (f *Feed) Name() string {
	return "nats"
}

func (f *Feed) Subscribe(ctx context.Context, req provider.Request, onFix func(fix.Fix)) (provider.Subscription, error) {
	name := f.config.Name
	if name == "" {
		name = "loctrack"
	}
	nc, err := nats.Connect(f.config.URL, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", provider.ErrUnavailable, f.config.URL, err)
	}
	s := &Subscription{nc: nc, throttle: provider.NewThrottle(req, onFix), log: f.log}
	// nats delivers messages of one subscription sequentially
	s.sub, err = nc.Subscribe(f.config.Subject, s.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", provider.ErrUnavailable, f.config.Subject, err)
	}
	f.log.Info().EmbedObject(req).Msgf("subscribed to %s", f.config.URL)
	return s, nil
}

type Subscription struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	throttle *provider.Throttle
	log      log.Logger
	once     sync.Once
}

func (s *Subscription) handle(m *nats.Msg) {
	p := fix.Payload{}
	err := json.Unmarshal(m.Data, &p)
	if err != nil {
		s.log.Error().Err(err).Msg("error parsing fix payload")
		return
	}
	s.throttle.Offer(p.Fix())
}

func (s *Subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
		s.nc.Close()
		s.throttle.Stop()
	})
	return err
}
