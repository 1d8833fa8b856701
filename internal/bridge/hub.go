package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/tracking"
)

type attacher interface {
	Attach(sub tracking.Subscriber)
	Detach(sub tracking.Subscriber)
}

// Hub fans location updates out to connected clients. It is attached to the
// controller only while at least one client is connected.
type Hub struct {
	// amu orders attach and detach calls; mu guards clients and is never held
	// while calling into the controller
	amu     sync.Mutex
	mu      sync.Mutex
	clients map[*client]bool
	ctrl    attacher
	log     log.Logger
}

func newHub(ctrl attacher) *Hub {
	h := &Hub{clients: make(map[*client]bool), ctrl: ctrl}
	h.log = log.DefaultLogger
	h.log.Context = log.NewContext(nil).Str("module", "hub").Value()
	return h
}

func (h *Hub) add(c *client) {
	h.amu.Lock()
	defer h.amu.Unlock()
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	if n == 1 {
		h.ctrl.Attach(h)
		h.log.Debug().Msg("attached to controller")
	}
}

func (h *Hub) remove(c *client) {
	h.amu.Lock()
	defer h.amu.Unlock()
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok && n == 0 {
		h.ctrl.Detach(h)
		h.log.Debug().Msg("detached from controller")
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Push encodes f once and hands it to every client without blocking. A
// client whose buffer is full misses the update.
func (h *Hub) Push(f fix.Fix) bool {
	d, err := locationUpdate(f)
	if err != nil {
		h.log.Error().Err(err).Msg("error encoding location update")
		return false
	}
	h.mu.Lock()
	for c := range h.clients {
		c.push(d)
	}
	h.mu.Unlock()
	return false
}

type client struct {
	id      string
	send    chan []byte
	skipped uint64
	pushed  uint64
}

func newClient(id string, buffer int) *client {
	return &client{id: id, send: make(chan []byte, buffer)}
}

func (c *client) push(d []byte) {
	select {
	case c.send <- d:
		atomic.AddUint64(&c.pushed, 1)
	default:
		atomic.AddUint64(&c.skipped, 1)
	}
}

func (c *client) MarshalObject(e *log.Entry) {
	e.Str("client_id", c.id).Uint64("pushed", atomic.LoadUint64(&c.pushed)).Uint64("skipped", atomic.LoadUint64(&c.skipped))
}
