package cli

import (
	"context"
	"fmt"

	"github.com/reloom/reloom-go/auth"
	"github.com/reloom/reloom-go/config"
	"github.com/reloom/reloom-go/designs"
	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/localstore"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/notifications"
	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/profiles"
	"github.com/reloom/reloom-go/querycache"
	"github.com/reloom/reloom-go/session"
	"github.com/reloom/reloom-go/version"
)

const serviceName = "reloom-cli"

// app holds the wired client stack shared by all commands.
type app struct {
	configFile string

	cfg           *config.Config
	kv            *localstore.Store
	sessions      *session.Store
	cache         *querycache.Cache
	api           *httpapi.Client
	auth          *auth.Service
	designs       *designs.Service
	profiles      *profiles.Service
	notifications *notifications.Service

	shutdowns []func(context.Context) error
}

// init wires the full stack from configuration. Called once from the
// root command's PersistentPreRunE.
func (a *app) init(ctx context.Context) error {
	var opts []config.LoaderOption
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg

	logger.Init(cfg.Logger)

	if cfg.Telemetry.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    serviceName,
			ServiceVersion: version.Short(),
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			SampleRate:     cfg.Telemetry.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		a.shutdowns = append(a.shutdowns, tp.Shutdown)

		mp, err := observability.InitMeter(ctx, &observability.MeterConfig{
			ServiceName:    serviceName,
			ServiceVersion: version.Short(),
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			Interval:       cfg.Telemetry.Interval,
		})
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		a.shutdowns = append(a.shutdowns, mp.Shutdown)
	}

	kv, err := localstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	a.kv = kv

	sessions, err := session.NewStore(kv)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	a.sessions = sessions
	a.cache = querycache.New()

	apiCfg := cfg.API
	apiCfg.TokenSource = sessions.Token
	apiCfg.OnUnauthorized = func() {
		sessions.Logout()
		a.cache.Clear()
	}
	api, err := httpapi.New(apiCfg)
	if err != nil {
		return fmt.Errorf("build API client: %w", err)
	}
	a.api = api

	a.auth = auth.NewService(api, sessions, a.cache)
	a.designs = designs.NewService(api, a.cache, sessions, designs.Options{
		FeedPageSize: cfg.Cache.FeedPageSize,
		StaleTime:    cfg.Cache.StaleTime,
	})
	a.profiles = profiles.NewService(api, a.cache, sessions, profiles.Options{
		StaleTime: cfg.Cache.ProfileStaleTime,
	})
	a.notifications = notifications.NewService(api, a.cache, notifications.Options{
		PageSize:  cfg.Cache.NotificationsPageSize,
		StaleTime: cfg.Cache.StaleTime,
	})

	return nil
}

// close releases resources in reverse wiring order.
func (a *app) close(ctx context.Context) error {
	var firstErr error
	if a.designs != nil {
		a.designs.Close()
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// requireLogin guards commands that need an authenticated session.
func (a *app) requireLogin() error {
	if !a.sessions.Authenticated() {
		return fmt.Errorf("not logged in, run 'reloom login' first")
	}
	return nil
}
