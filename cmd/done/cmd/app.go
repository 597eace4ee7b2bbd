package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"done/backend"
	"done/backend/google"
	"done/backend/instrumented"
	"done/backend/mstodo"
	"done/backend/sqlite"
	"done/internal/config"
	"done/internal/credentials"
	"done/internal/ratelimit"
	"done/internal/server"
	"done/internal/shutdown"
	"done/internal/utils"
)

// shutdownTimeout bounds the cleanup of providers and the callback server.
const shutdownTimeout = 5 * time.Second

// defaultLocalList is seeded into an empty local store.
const defaultLocalList = "Tasks"

// app holds everything a command needs, built from the config file.
type app struct {
	conf     *config.Config
	creds    *credentials.Manager
	registry *backend.Registry
	metrics  *prometheus.Registry
	server   *server.Server
	shutdown *shutdown.Manager
}

// newApp loads the configuration and registers the enabled providers.
func newApp(ctx context.Context, cfg *Config) (*app, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, utils.WrapWithSuggestion(err, "Check the YAML syntax of your config file")
	}
	conf.ApplyFlags(cfg.Verbose, cfg.OutputFormat)
	if err := conf.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Fix the config file at "+configPathOrDefault(cfg.ConfigPath))
	}
	utils.SetVerboseMode(conf.Logging.Verbose)
	config.SetAppInfo(Version, Commit)

	var credOpts []credentials.ManagerOption
	if cfg.Keyring != nil {
		credOpts = append(credOpts, credentials.WithKeyring(cfg.Keyring))
	}
	if cfg.Getenv != nil {
		credOpts = append(credOpts, credentials.WithEnv(cfg.Getenv))
	}

	a := &app{
		conf:     conf,
		creds:    credentials.NewManager(credOpts...),
		registry: backend.NewRegistry(),
		metrics:  prometheus.NewRegistry(),
		shutdown: shutdown.NewManager(ctx),
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.shutdown.RegisterCleanup("providers", func(context.Context) error {
		return a.registry.Close()
	})

	if err := a.registerProviders(cfg); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func configPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(config.GetConfigDir(), "config.yaml")
}

func (a *app) registerProviders(cfg *Config) error {
	var pm *instrumented.Metrics
	if a.conf.IsMetricsEnabled() {
		pm = instrumented.NewMetrics(a.metrics)
	}
	register := func(service backend.Service, p backend.Provider, priority int, stats *ratelimit.Stats) error {
		if pm != nil {
			if stats != nil {
				if err := pm.WatchRateLimits(service, stats); err != nil {
					return fmt.Errorf("register rate limit metric: %w", err)
				}
			}
			p = instrumented.Wrap(p, service, pm)
		}
		a.registry.RegisterWithPriority(service, p, priority)
		return nil
	}

	providers := a.conf.Providers
	if providers.Local.Enabled {
		path := providers.Local.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}
		local, err := sqlite.New(path, sqlite.WithDefaultList(defaultLocalList))
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		if err := register(backend.ServiceLocal, local, 10, nil); err != nil {
			return err
		}
	}

	if providers.MSTodo.Enabled {
		stats := ratelimit.NewStats()
		p, err := mstodo.New(mstodo.Config{
			ClientID:     providers.MSTodo.ClientID,
			ClientSecret: providers.MSTodo.ClientSecret,
			Tenant:       providers.MSTodo.Tenant,
			RedirectURL:  a.conf.RedirectURL(string(backend.ServiceMicrosoft)),
			BaseURL:      providers.MSTodo.Endpoint,
			Credentials:  a.creds,
			Opener:       cfg.Opener,
			Stats:        stats,
		})
		if err != nil {
			return utils.WrapWithSuggestion(fmt.Errorf("set up mstodo: %w", err), "Check providers.mstodo in the config file")
		}
		if err := register(backend.ServiceMicrosoft, p, 20, stats); err != nil {
			return err
		}
	}

	if providers.Google.Enabled {
		stats := ratelimit.NewStats()
		p, err := google.New(google.Config{
			ClientID:     providers.Google.ClientID,
			ClientSecret: providers.Google.ClientSecret,
			RedirectURL:  a.conf.RedirectURL(string(backend.ServiceGoogle)),
			BaseURL:      providers.Google.Endpoint,
			Credentials:  a.creds,
			Opener:       cfg.Opener,
			Stats:        stats,
		})
		if err != nil {
			return utils.WrapWithSuggestion(fmt.Errorf("set up google: %w", err), "Check providers.google in the config file")
		}
		if err := register(backend.ServiceGoogle, p, 30, stats); err != nil {
			return err
		}
	}
	return nil
}

// provider returns the named provider, or the first available one.
func (a *app) provider(name string) (backend.Service, backend.Provider, error) {
	if name == "" {
		available := a.registry.Available()
		if len(available) == 0 {
			return "", nil, utils.ErrProviderNotConfigured("any provider")
		}
		name = string(available[0])
	}
	service := backend.Service(name)
	p, ok := a.registry.Get(service)
	if !ok {
		return "", nil, utils.ErrProviderNotConfigured(name)
	}
	return service, p, nil
}

// startServer starts the loopback callback server once.
func (a *app) startServer() error {
	if a.server != nil {
		return nil
	}
	cfg := server.Config{Addr: a.conf.Server.Addr, Registry: a.registry}
	if a.conf.IsMetricsEnabled() {
		cfg.Gatherer = a.metrics
	}
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		return err
	}
	a.server = srv
	a.shutdown.RegisterCleanup("callback server", srv.Shutdown)
	return nil
}

// close shuts down the server and closes every provider.
func (a *app) close() error {
	a.shutdown.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.shutdown.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		utils.Warnf("Shutdown timed out after %s", shutdownTimeout)
	}
	return err
}
