package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/events"
	"nuha.dev/loctrack/internal/notify"
	"nuha.dev/loctrack/internal/tracking"
	"nuha.dev/loctrack/internal/util"
)

type Controller interface {
	State() tracking.State
	IsActive(ctx context.Context) (bool, error)
}

type Sources struct {
	Controller Controller
	Board      *notify.Board
	Recorder   *events.Recorder
	Provider   string
	// connected channel clients, may be nil
	Clients func() int
}

type Status struct {
	State         string                 `json:"state"`
	Intent        bool                   `json:"intent"`
	IntentError   string                 `json:"intent_error,omitempty"`
	Provider      string                 `json:"provider"`
	Clients       int                    `json:"clients"`
	Notifications []notify.Notification  `json:"notifications"`
	LastEvents    map[string]eventStatus `json:"last_events"`
}

type eventStatus struct {
	ID         string      `json:"id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type MonitoringServer struct {
	src    Sources
	server *http.Server
	log    log.Logger
}

type MonitoringConfig struct {
	ListenAddr string
}

func NewMonApi(src Sources, config *MonitoringConfig) *MonitoringServer {
	m := &MonitoringServer{}
	m.src = src
	m.log = log.DefaultLogger
	m.log.Context = log.NewContext(nil).Str("module", "monitoring").Value()
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", m.serve_http)
	m.server = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return m
}

func (m *MonitoringServer) Run() error {
	m.log.Info().Msgf("starting monitoring server on : %s", m.server.Addr)
	err := m.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.log.Error().Err(err).Msg("")
		return err
	}
	return nil
}

func (m *MonitoringServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}

func (m *MonitoringServer) GetHandler() http.Handler {
	return m.server.Handler
}

func (m *MonitoringServer) Status(ctx context.Context) *Status {
	res := &Status{}
	res.State = m.src.Controller.State().String()
	intent, err := m.src.Controller.IsActive(ctx)
	if err != nil {
		res.IntentError = err.Error()
	}
	res.Intent = intent
	res.Provider = m.src.Provider
	if m.src.Clients != nil {
		res.Clients = m.src.Clients()
	}
	res.Notifications = []notify.Notification{}
	if m.src.Board != nil {
		res.Notifications = m.src.Board.Active()
	}
	res.LastEvents = make(map[string]eventStatus)
	if m.src.Recorder != nil {
		for topic, e := range m.src.Recorder.Last() {
			res.LastEvents[topic] = eventStatus{ID: e.ID, OccurredAt: e.OccurredAt, Data: e.Data}
		}
	}
	return res
}

func (m *MonitoringServer) serve_http(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, m.Status(r.Context()))
}
