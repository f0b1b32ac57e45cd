package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raysh454/policyctl/internal/apiclient"
	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/logging"
	"github.com/raysh454/policyctl/internal/metrics"
	"github.com/raysh454/policyctl/internal/policy"
	"github.com/raysh454/policyctl/internal/webclient"
)

// Application is the runtime state container for one policyctl invocation.
// It owns the credential store and the transport and must be closed.
type Application struct {
	Config *Config
	Logger logging.Logger

	Store     credential.KeyValueStore
	Transport webclient.WebClient
	Client    *apiclient.Client
	Policies  *policy.Service
	Metrics   metrics.ClientMetrics

	prom *metrics.Prom
}

// NewApplication wires the store, transport, API client and policy service
// described by cfg.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{Config: cfg, Logger: logger, Metrics: metrics.Noop{}}
	if cfg.Metrics.Enabled {
		a.prom = metrics.NewProm(cfg.Metrics.Namespace)
		a.Metrics = a.prom
	}

	store, err := credential.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	raw, err := webclient.NewWebClient(webclient.Config{Client: cfg.Transport, Timeout: cfg.Timeout}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.Transport = webclient.NewInstrumented(raw, a.Metrics)

	var provider credential.Provider = credential.NewStoreProvider(store)
	if cfg.APIKey != "" {
		provider = credential.StaticProvider(cfg.APIKey)
		logger.Debug("using api key override")
	}

	a.Client, err = apiclient.New(apiclient.Config{BaseURL: cfg.BaseURL, DualHeader: cfg.DualHeader},
		provider, a.Transport, logger, apiclient.WithMetrics(a.Metrics))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Policies = policy.NewService(a.Client, a.Transport, a.Client.Origin().String(), logger)

	logger.Info("application ready",
		logging.Field{Key: "origin", Value: a.Client.Origin().String()},
		logging.Field{Key: "store", Value: string(cfg.Store.Backend)})
	return a, nil
}

// Gatherer exposes collected metrics, or nil when metrics are disabled.
func (a *Application) Gatherer() prometheus.Gatherer {
	if a.prom == nil {
		return nil
	}
	return a.prom.Registry()
}

// Close flushes metrics and releases the transport and store.
func (a *Application) Close() error {
	if a == nil {
		return errors.New("application is nil")
	}
	var errs []error
	if a.prom != nil && a.Config.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(a.Config.Metrics.Textfile, a.prom.Registry()); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.Transport != nil {
		if err := a.Transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
