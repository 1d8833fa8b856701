package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"nuha.dev/loctrack/internal/bridge"
	"nuha.dev/loctrack/internal/config"
	"nuha.dev/loctrack/internal/events"
	"nuha.dev/loctrack/internal/notify"
	"nuha.dev/loctrack/internal/permission"
	"nuha.dev/loctrack/internal/prefs"
	"nuha.dev/loctrack/internal/prefs/pgstore"
	"nuha.dev/loctrack/internal/prefs/sqlitestore"
	"nuha.dev/loctrack/internal/provider"
	"nuha.dev/loctrack/internal/provider/natsfeed"
	"nuha.dev/loctrack/internal/provider/simplejson"
	"nuha.dev/loctrack/internal/reconcile"
	"nuha.dev/loctrack/internal/tracking"
	"nuha.dev/loctrack/internal/web/monitoring"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking agent",
	RunE:  run,
}

func init() {
	f := runCmd.Flags()
	f.String("prefs-backend", "sqlite", "sqlite or postgres")
	f.String("prefs-path", "/var/lib/loctrack/prefs.db", "sqlite prefs file")
	f.String("db-url", "", "postgres url for the postgres prefs backend")
	f.String("provider", "simplejson", "simplejson or nats")
	f.String("device-address", ":5001", "simplejson device listen address")
	f.String("nats-url", "nats://127.0.0.1:4222", "NATS server url")
	f.String("nats-subject", "loctrack.fix", "NATS subject carrying fixes")
	f.String("permission", "store", "store (granted over the channel) or granted")
	f.String("channel-token-hash", "", "bcrypt hash of the channel token")
	f.String("mon-address", ":3334", "monitoring listen address, empty disables")
	for _, name := range []string{"prefs-backend", "prefs-path", "db-url", "provider", "device-address",
		"nats-url", "nats-subject", "permission", "channel-token-hash", "mon-address"} {
		_ = v.BindPFlag(flagKey(name), f.Lookup(name))
	}
}

func flagKey(name string) string {
	b := []byte(name)
	for i := range b {
		if b[i] == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

func openStore(ctx context.Context, c *config.Config) (prefs.Store, error) {
	switch c.PrefsBackend {
	case "postgres":
		return pgstore.Connect(ctx, c.DbUrl)
	default:
		return sqlitestore.Open(c.PrefsPath)
	}
}

func newProvider(c *config.Config) provider.Provider {
	switch c.Provider {
	case "nats":
		return natsfeed.NewFeed(&natsfeed.FeedConfig{URL: c.NatsUrl, Subject: c.NatsSubject, Name: "loctrackd"})
	default:
		return simplejson.NewProvider(&simplejson.ProviderConfig{ListenerAddr: c.DeviceAddress})
	}
}

func run(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	setupLog(c)
	logger := log.DefaultLogger
	logger.Context = log.NewContext(nil).Str("module", "main").Value()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, c)
	if err != nil {
		return fmt.Errorf("open prefs store: %w", err)
	}
	defer store.Close()

	eb, err := events.New()
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	rec := events.NewRecorder(eb, "monitoring")
	board := notify.NewBoard(eb)

	var checker permission.Checker
	var perms bridge.Permissions
	if c.Permission == "granted" {
		checker = permission.Static(true)
	} else {
		ps := permission.NewStore(store)
		checker = ps
		perms = ps
	}

	prov := newProvider(c)
	intent := prefs.TrackingFlag(store)
	ctrl := tracking.NewController(intent, checker, prov, board, eb, nil)
	br := bridge.NewBridge(ctrl, perms, &bridge.BridgeConfig{ListenAddr: c.ChannelAddress, TokenHash: c.ChannelTokenHash})

	errc := make(chan error, 2)
	go func() { errc <- br.Run() }()
	var mon *monitoring.MonitoringServer
	if c.MonAddress != "" {
		mon = monitoring.NewMonApi(monitoring.Sources{
			Controller: ctrl,
			Board:      board,
			Recorder:   rec,
			Provider:   prov.Name(),
			Clients:    br.Clients,
		}, &monitoring.MonitoringConfig{ListenAddr: c.MonAddress})
		go func() { errc <- mon.Run() }()
	}
	go reconcile.NewReconciler(intent, ctrl, eb).Run(ctx)

	logger.Info().Str("provider", prov.Name()).Str("prefs_backend", c.PrefsBackend).Msg("agent started")
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := br.Shutdown(sctx); serr != nil {
		logger.Error().Err(serr).Msg("error shutting down channel server")
	}
	if mon != nil {
		if serr := mon.Shutdown(sctx); serr != nil {
			logger.Error().Err(serr).Msg("error shutting down monitoring server")
		}
	}
	ctrl.Shutdown(sctx)
	return err
}
