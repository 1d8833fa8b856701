package simplejson

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/provider"
)

const (
	NEW_CONNECTION      string = "new_connection"
	LOGIN_MESSAGE       string = "login_message"
	LOGIN_MESSAGE_ERROR string = "login_message_error"
	CONNECTION_CLOSED   string = "connection_closed"
)

type ProviderConfig struct {
	ListenerAddr string
	LoginTimeout time.Duration
}

// Provider accepts gps devices speaking the simplejson framing and turns
// their location updates into fixes.
type Provider struct {
	config *ProviderConfig
	log    log.Logger
}

func NewProvider(config *ProviderConfig) *Provider {
	p := &Provider{config: config}
	if p.config.LoginTimeout == 0 {
		p.config.LoginTimeout = 2 * time.Second
	}
	p.log = log.DefaultLogger
	p.log.Context = log.NewContext(nil).Str("module", "simplejson-provider").Value()
	return p
}

func (p *Provider) Name() string {
	return "simplejson"
}

func (p *Provider) Subscribe(ctx context.Context, req provider.Request, onFix func(fix.Fix)) (provider.Subscription, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", p.config.ListenerAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", provider.ErrUnavailable, p.config.ListenerAddr, err)
	}
	s := &Subscription{
		p:        p,
		listener: &proxyproto.Listener{Listener: ln},
		throttle: provider.NewThrottle(req, onFix),
		conns:    make(map[uint64]net.Conn),
		log:      p.log,
	}
	p.log.Info().EmbedObject(req).Msgf("accepting devices on %s", ln.Addr())
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

type Subscription struct {
	p           *Provider
	listener    net.Listener
	throttle    *provider.Throttle
	log         log.Logger
	mu          sync.Mutex
	cid_counter uint64
	conns       map[uint64]net.Conn
	closed      bool
	wg          sync.WaitGroup
	once        sync.Once
}

func (s *Subscription) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Subscription) acceptLoop() {
	defer s.wg.Done()
	for {
		_c, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.Error().Err(err).Msg("failed to accept new connection")
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_c.Close()
			return
		}
		cid := s.cid_counter
		s.cid_counter = s.cid_counter + 1
		s.conns[cid] = _c
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handle(_c, cid)
	}
}

func (s *Subscription) handle(_c net.Conn, cid uint64) {
	defer s.wg.Done()
	// the proxy header is read lazily, so address lookup may block on the device
	c := NewConn(_c, cid)
	s.log.Info().Str("event", NEW_CONNECTION).EmbedObject(c).Msg("")
	defer func() {
		c.Close()
		s.mu.Lock()
		delete(s.conns, cid)
		s.mu.Unlock()
		s.log.Info().Str("event", CONNECTION_CLOSED).EmbedObject(c).Msg("")
	}()

	msg := FrameMessage{Buffer: make([]byte, 1000)}
	_ = c.SetReadDeadline(time.Now().Add(s.p.config.LoginTimeout))
	err := readMessage(c, &msg)
	if err != nil {
		s.log.Error().Err(err).Str("event", LOGIN_MESSAGE_ERROR).EmbedObject(c).Msg("error reading login message")
		return
	}
	if msg.Protocol != LOGIN {
		s.log.Error().EmbedObject(c).Str("event", LOGIN_MESSAGE_ERROR).Msgf("message type is not login,type : %x", msg.Protocol)
		return
	}
	login := LoginMessage{}
	err = json.Unmarshal(msg.Payload, &login)
	if err != nil {
		s.log.Error().Err(err).Str("event", LOGIN_MESSAGE_ERROR).EmbedObject(c).Msg("error parsing login message")
		return
	}
	_ = c.SetReadDeadline(time.Time{})
	s.log.Info().Str("event", LOGIN_MESSAGE).EmbedObject(c).Str("sn_type", login.SnType).Str("serial", login.Serial).Msg("")

	for {
		err := readMessage(c, &msg)
		if err != nil {
			s.log.Debug().Err(err).EmbedObject(c).Msg("error while reading message")
			return
		}
		switch msg.Protocol {
		case LOCATION_UPDATE:
			loc := LocationMessage{}
			err = json.Unmarshal(msg.Payload, &loc)
			if err != nil {
				s.log.Error().Err(err).EmbedObject(c).Msg("error parsing location data")
				return
			}
			if !loc.Fix {
				s.log.Trace().EmbedObject(c).Msg("location without fix skipped")
				continue
			}
			s.throttle.Offer(loc.ToFix())
		case STATUS:
			status := StatusMessage{}
			if err := json.Unmarshal(msg.Payload, &status); err == nil {
				s.log.Debug().EmbedObject(c).Bool("gps_status", status.GpsStatus).Msg("status update")
			}
		case GPS_ERROR:
			s.log.Warn().EmbedObject(c).Msg("device reported gps error")
		}
	}
}

func (s *Subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		err = s.listener.Close()
		for _, c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		s.throttle.Stop()
		s.log.Info().Msg("device listener closed")
	})
	return err
}
