package main

import (
	"context"
	"fmt"
	"time"

	"privacy-guardian/internal/config"
	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/notify"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/router"
	"privacy-guardian/internal/scan"
	"privacy-guardian/internal/store"
)

// runtime is the privileged context: every long-lived collaborator the
// commands share.
type runtime struct {
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	store      *store.Store
	classifier router.Classifier
	scanner    *scan.Aggregator
	router     *router.Router

	stop context.CancelFunc
	done chan struct{}
}

// newRuntime opens the store and builds the classifier, scanner and router.
// The router serves until Close.
func newRuntime(cfg *config.Config) (*runtime, error) {
	log := logger.New("GUARDIAN", cfg.LogLevel)
	m := metrics.New()

	st, err := store.Open(cfg.StoreBackend, cfg.StorePath, log.With("STORE"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	classifier := pii.NewClient(pii.Options{
		BaseURL:        cfg.BackendURL,
		DetectTimeout:  cfg.DetectTimeout,
		RequestTimeout: cfg.RequestTimeout,
		PingTimeout:    cfg.PingTimeout,
		Retries:        cfg.AnonymizeRetries,
		Logger:         log.With("CLASSIFIER"),
		Metrics:        m,
	})

	notifiers := notify.Multi{notify.NewLog(log.With("NOTIFY"))}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.NotifyWebhookURL, cfg.RequestTimeout, cfg.AnonymizeRetries))
	}
	notifier := &notify.Gated{
		Flags:   st,
		Key:     store.KeyNotificationsEnabled,
		Next:    notifiers,
		Metrics: m,
	}

	var svc router.Classifier = classifier
	if cfg.AnonymizeCacheSize > 0 {
		svc = pii.NewCached(classifier, cfg.AnonymizeCacheSize)
	}
	scanner := scan.NewAggregator(svc, st, notifier, log.With("SCAN"), m)

	rt := router.New(router.Timeouts{
		Default: cfg.RequestTimeout,
		PerAction: map[router.Action]time.Duration{
			router.ActionScanHistory: cfg.ScanTimeout,
		},
	}, log.With("ROUTER"))

	ctx, cancel := context.WithCancel(context.Background())
	r := &runtime{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		store:      st,
		classifier: svc,
		scanner:    scanner,
		router:     rt,
		stop:       cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		rt.Run(ctx, &router.Service{Classifier: svc, Scanner: scanner}) //nolint:errcheck // ends with Close
	}()
	return r, nil
}

// pageClient is the page context's handle on the router.
func (r *runtime) pageClient() *router.PageClient {
	return router.NewPageClient(r.router, r.log.With("PAGE"))
}

// Close stops the router and releases the store.
func (r *runtime) Close() {
	r.router.Close()
	r.stop()
	<-r.done
	if err := r.store.Close(); err != nil {
		r.log.Warnf("close", "store: %v", err)
	}
}
