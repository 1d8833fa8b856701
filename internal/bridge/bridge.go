package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"
	"golang.org/x/crypto/bcrypt"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
	"nuha.dev/loctrack/internal/tracking"
	"nuha.dev/loctrack/internal/util"
)

// Controller is the part of the tracking controller the channel drives.
type Controller interface {
	attacher
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsActive(ctx context.Context) (bool, error)
	OnPermissionGranted(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// Permissions records the user's location grant.
type Permissions interface {
	Grant(ctx context.Context) error
	Revoke(ctx context.Context) error
}

var ErrPermissionUnmanaged = errors.New("location permission is not managed by this agent")

type BridgeConfig struct {
	ListenAddr string
	// bcrypt hash of the channel token, empty accepts any token
	TokenHash      string
	LoginTimeout   time.Duration
	ClientBuffer   int
	AllowedOrigins []string
}

type Bridge struct {
	ctrl   Controller
	perm   Permissions
	disp   *Dispatcher
	hub    *Hub
	config *BridgeConfig
	router chi.Router
	server *http.Server
	log    log.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge builds the method channel. perm may be nil when permission is not
// managed locally; the grant methods then fail with PERMISSION_ERROR.
func NewBridge(ctrl Controller, perm Permissions, config *BridgeConfig) *Bridge {
	b := &Bridge{ctrl: ctrl, perm: perm, config: config}
	if b.config.LoginTimeout == 0 {
		b.config.LoginTimeout = 5 * time.Second
	}
	if b.config.ClientBuffer == 0 {
		b.config.ClientBuffer = 16
	}
	if len(b.config.AllowedOrigins) == 0 {
		b.config.AllowedOrigins = []string{"https://*", "http://*"}
	}
	b.log = log.DefaultLogger
	b.log.Context = log.NewContext(nil).Str("module", "bridge").Str("channel", CHANNEL).Value()
	b.hub = newHub(ctrl)
	b.ctx, b.cancel = context.WithCancel(context.Background())

	b.disp = NewDispatcher()
	b.disp.Add(START_LOCATION_SERVICE, b.startLocationService, SERVICE_START_ERROR)
	b.disp.Add(STOP_LOCATION_SERVICE, b.stopLocationService, SERVICE_STOP_ERROR)
	b.disp.Add(IS_SERVICE_RUNNING, b.isServiceRunning, "")
	b.disp.Add(GRANT_LOCATION_PERMISSION, b.grantLocationPermission, PERMISSION_ERROR)
	b.disp.Add(REVOKE_LOCATION_PERMISSION, b.revokeLocationPermission, PERMISSION_ERROR)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   b.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Recoverer)
	r.Get("/channel/"+CHANNEL, b.serveWs)
	r.Post("/channel/{method}", b.serveCall)
	b.router = r

	// no read/write timeout, websocket connections are long lived
	b.server = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return b
}

func (b *Bridge) Handler() http.Handler {
	return b.router
}

func (b *Bridge) Clients() int {
	return b.hub.Count()
}

func (b *Bridge) Run() error {
	b.log.Info().Msgf("starting channel server on : %s", b.server.Addr)
	err := b.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		b.log.Error().Err(err).Msg("")
		return err
	}
	return nil
}

func (b *Bridge) Shutdown(ctx context.Context) error {
	err := b.server.Shutdown(ctx)
	b.cancel()
	b.wg.Wait()
	return err
}

// Permission and provider failures are reported through isServiceRunning,
// not as call errors.
func (b *Bridge) startLocationService(ctx context.Context, res *bool) error {
	err := b.ctrl.Start(ctx)
	if errors.Is(err, tracking.ErrPermissionDenied) || errors.Is(err, tracking.ErrProviderUnavailable) {
		b.log.Warn().Err(err).Msg("tracking not running after start")
		err = nil
	}
	if err != nil {
		return err
	}
	*res = true
	return nil
}

func (b *Bridge) stopLocationService(ctx context.Context, res *bool) error {
	err := b.ctrl.Stop(ctx)
	if err != nil {
		return err
	}
	*res = true
	return nil
}

func (b *Bridge) isServiceRunning(ctx context.Context, res *bool) error {
	v, err := b.ctrl.IsActive(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("error reading tracking intent")
		v = false
	}
	*res = v
	return nil
}

func (b *Bridge) grantLocationPermission(ctx context.Context, res *bool) error {
	if b.perm == nil {
		return ErrPermissionUnmanaged
	}
	err := b.perm.Grant(ctx)
	if err != nil {
		return err
	}
	err = b.ctrl.OnPermissionGranted(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("tracking not resumed after grant")
	}
	*res = true
	return nil
}

// Revoking releases a running session but keeps the intent, so a later grant
// resumes tracking.
func (b *Bridge) revokeLocationPermission(ctx context.Context, res *bool) error {
	if b.perm == nil {
		return ErrPermissionUnmanaged
	}
	err := b.perm.Revoke(ctx)
	if err != nil {
		return err
	}
	b.ctrl.Shutdown(ctx)
	*res = true
	return nil
}

func (b *Bridge) check_token(token string) bool {
	if b.config.TokenHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(b.config.TokenHash), []byte(token)) == nil
}

func (b *Bridge) serveCall(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !b.check_token(token) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	call := &Call{}
	err := json.NewDecoder(r.Body).Decode(call)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call.Method = chi.URLParam(r, "method")
	reply := b.disp.Dispatch(r.Context(), call)
	util.JsonWrite(w, reply)
}

func (b *Bridge) serveWs(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("error while upgrading websocket")
		return
	}
	b.wg.Add(1)
	defer b.wg.Done()

	readCtx, cancel := context.WithTimeout(r.Context(), b.config.LoginTimeout)
	_, msg, err := c.Read(readCtx)
	cancel()
	if err != nil {
		b.log.Error().Err(err).Msg("error while reading channel token")
		c.Close(websocket.StatusPolicyViolation, "token expected")
		return
	}
	if !b.check_token(string(msg)) {
		b.log.Info().Msg("invalid channel token")
		c.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	cl := newClient(util.GenUUID(), b.config.ClientBuffer)
	b.log.Info().EmbedObject(cl).Msg("channel client connected")
	// hijacked connections outlive r.Context, shutdown goes through b.ctx
	ctx, stop := context.WithCancel(b.ctx)
	defer stop()

	b.hub.add(cl)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.writeLoop(ctx, c, cl)
	}()
	err = b.readLoop(ctx, c)
	b.hub.remove(cl)
	stop()
	wg.Wait()

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
		b.log.Info().EmbedObject(cl).Msg("channel client disconnected")
		c.Close(websocket.StatusNormalClosure, "")
	} else {
		b.log.Error().Err(err).EmbedObject(cl).Msg("channel client dropped")
		c.Close(websocket.StatusInternalError, "")
	}
}

func (b *Bridge) readLoop(ctx context.Context, c *websocket.Conn) error {
	for {
		_, msg, err := c.Read(ctx)
		if err != nil {
			return err
		}
		var reply *Reply
		call := &Call{}
		err = json.Unmarshal(msg, call)
		if err != nil {
			reply = &Reply{Error: &ErrorBody{Code: INVALID_CALL, Message: err.Error()}}
		} else {
			reply = b.disp.Dispatch(ctx, call)
		}
		err = wsjson.Write(ctx, c, reply)
		if err != nil {
			return err
		}
	}
}

func (b *Bridge) writeLoop(ctx context.Context, c *websocket.Conn, cl *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-cl.send:
			err := c.Write(ctx, websocket.MessageText, d)
			if err != nil {
				b.log.Error().Err(err).EmbedObject(cl).Msg("error while writing to connection")
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}
