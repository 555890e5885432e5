// Package app wires the dispatch core into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apihistory "github.com/kilianp07/lastmile/api/history"
	"github.com/kilianp07/lastmile/api/orders"
	"github.com/kilianp07/lastmile/api/quote"
	"github.com/kilianp07/lastmile/api/schedule"
	"github.com/kilianp07/lastmile/config"
	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/fare"
	corehistory "github.com/kilianp07/lastmile/core/history"
	"github.com/kilianp07/lastmile/core/ingest"
	coremetrics "github.com/kilianp07/lastmile/core/metrics"
	coremon "github.com/kilianp07/lastmile/core/monitoring"
	"github.com/kilianp07/lastmile/core/reconcile"
	"github.com/kilianp07/lastmile/core/relay"
	"github.com/kilianp07/lastmile/infra/auth"
	"github.com/kilianp07/lastmile/infra/history"
	"github.com/kilianp07/lastmile/infra/httpapi"
	"github.com/kilianp07/lastmile/infra/logger"
	"github.com/kilianp07/lastmile/infra/metrics"
	"github.com/kilianp07/lastmile/infra/monitoring"
	"github.com/kilianp07/lastmile/infra/mqtt"
	"github.com/kilianp07/lastmile/infra/settings"
	"github.com/kilianp07/lastmile/infra/ws"
	"github.com/kilianp07/lastmile/internal/eventbus"
	"github.com/kilianp07/lastmile/internal/httpjson"
)

// Service owns every long running component of the dispatcher.
type Service struct {
	Settings *settings.FileStore
	Engine   *fare.Engine
	Relay    *relay.Aggregator
	Orders   *reconcile.Reconciler
	Ingest   *ingest.Ingest
	History  corehistory.Store

	orderBus *eventbus.TypedBus[events.OrderUpdated]
	syncBus  *eventbus.TypedBus[events.SyncStateChanged]
	sink     coremetrics.MetricsSink
	mux      *http.ServeMux
	httpAddr string
	promAddr string
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	store, err := settings.Load(cfg.Fare.SettingsFile, cfg.Fare.Autosave, logger.New("settings"))
	if err != nil {
		return nil, fmt.Errorf("fare settings: %w", err)
	}
	if cfg.Fare.SurgePolicy != "" {
		p := store.Surcharges()
		p.SurgePolicy = fare.SurgePolicy(cfg.Fare.SurgePolicy)
		// in memory only: the file keeps its own policy
		if err := store.MemoryStore.UpdateSurcharges(p); err != nil {
			return nil, fmt.Errorf("surge policy override: %w", err)
		}
	}
	engine := fare.NewEngine(store, sink, logger.New("fare"))

	clientCfg := cfg.Live.HTTPClient(cfg.Sync)
	snapshots := httpapi.NewSnapshotClient(clientCfg)

	channel, err := newChannel(cfg.Live)
	if err != nil {
		return nil, err
	}
	hist, err := history.New(cfg.History)
	if err != nil {
		return nil, err
	}

	orderBus := eventbus.NewTyped[events.OrderUpdated]()
	syncBus := eventbus.NewTyped[events.SyncStateChanged]()
	recOpts := []reconcile.Option{
		reconcile.WithFetcher(snapshots.Fetch),
		reconcile.WithPublisher(orderBus),
		reconcile.WithMetrics(sink),
		reconcile.WithLogger(logger.New("reconcile")),
	}
	if hist != nil {
		recOpts = append(recOpts, reconcile.WithPublisher(corehistory.NewRecorder(hist, logger.New("history"))))
	}
	rec := reconcile.New(recOpts...)

	in, err := ingest.New(cfg.Sync.Ingest(), channel, credentials(cfg.Live, clientCfg), snapshots.Fetch, rec,
		ingest.WithPublisher(syncBus),
		ingest.WithMetrics(sink),
		ingest.WithLogger(logger.New("ingest")),
	)
	if err != nil {
		if hist != nil {
			_ = hist.Close()
		}
		return nil, err
	}
	svc := &Service{
		Settings: store,
		Engine:   engine,
		Relay:    relay.NewAggregator(engine),
		Orders:   rec,
		Ingest:   in,
		History:  hist,
		orderBus: orderBus,
		syncBus:  syncBus,
		sink:     sink,
		httpAddr: cfg.HTTP.Addr,
		promAddr: cfg.Metrics.PrometheusAddr,
		log:      logg,
	}
	svc.mux = svc.routes(cfg.HTTP.Token)
	return svc, nil
}

func newChannel(cfg config.LiveConfig) (ingest.Channel, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		ch, err := mqtt.NewChannel(cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt channel: %w", err)
		}
		return ch, nil
	case config.TransportWS:
		ch, err := ws.NewChannel(cfg.WS.Channel(), logger.New("ws"))
		if err != nil {
			return nil, fmt.Errorf("ws channel: %w", err)
		}
		return ch, nil
	default:
		return nil, nil
	}
}

// credentials picks the token source of the live channel: OAuth2 client
// credentials, the backend exchange endpoint, or the static API key.
func credentials(live config.LiveConfig, c httpapi.Config) ingest.CredentialFunc {
	switch {
	case live.OAuth.Enabled():
		return auth.NewClientCred(live.OAuth).Token
	case live.CredentialsURL != "":
		return httpapi.NewCredentialClient(c).Token
	default:
		key := live.APIKey
		return func(context.Context) (string, error) { return key, nil }
	}
}

func (s *Service) routes(token string) *http.ServeMux {
	mux := http.NewServeMux()
	schedule.New(s.Settings, logger.New("api-schedule")).Register(mux, token)
	quote.New(s.Engine, s.Relay, s.Orders, logger.New("api-quote")).Register(mux)
	orders.New(s.Orders, s.Ingest, s.orderBus).Register(mux)
	if s.History != nil {
		mux.Handle("GET /api/history", apihistory.NewLogHandler(s.History, token))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpjson.Write(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"sync_state": s.Ingest.State().String(),
			"orders":     s.Orders.Len(),
		})
	})
	if s.promAddr == "" {
		mux.Handle("GET /metrics", metrics.Handler(nil))
	}
	return mux
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.mux }

// Run starts the ingest and the HTTP servers and blocks until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.watchSync(ctx, s.syncBus.Subscribe())
	if err := s.Ingest.Start(ctx); err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.httpAddr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.httpAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchSync refreshes the order collection whenever the live channel comes
// up, so events missed while disconnected are covered by a snapshot.
func (s *Service) watchSync(ctx context.Context, ch <-chan events.SyncStateChanged) {
	defer coremon.Recover()
	defer s.syncBus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.To != ingest.StateConnected.String() {
				continue
			}
			if err := s.Orders.Refresh(ctx); err != nil {
				s.log.Warnf("refresh after %s: %v", ev.Reason, err)
				coremon.CaptureException(err, map[string]string{"component": "service", "op": "refresh"})
			}
		}
	}
}

// Close stops the ingest and releases the buses, sinks and history store.
func (s *Service) Close() error {
	s.Ingest.Stop()
	s.orderBus.Close()
	s.syncBus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	if s.History != nil {
		return s.History.Close()
	}
	return nil
}
