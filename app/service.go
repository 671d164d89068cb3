// Package app wires the allocation engine from configuration: registry,
// validator, scheduler, fare calculator, availability classifier, sinks,
// board feed and the HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tyneline/dispatch/api/allocation"
	apifleet "github.com/tyneline/dispatch/api/fleet"
	"github.com/tyneline/dispatch/api/schedulelogs"
	"github.com/tyneline/dispatch/config"
	"github.com/tyneline/dispatch/core/availability"
	"github.com/tyneline/dispatch/core/events"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/core/fleetstatus"
	coremetrics "github.com/tyneline/dispatch/core/metrics"
	coreregistry "github.com/tyneline/dispatch/core/registry"
	coreroute "github.com/tyneline/dispatch/core/routing"
	"github.com/tyneline/dispatch/core/schedule"
	"github.com/tyneline/dispatch/core/schedule/audit"
	"github.com/tyneline/dispatch/core/validate"
	"github.com/tyneline/dispatch/infra/board"
	"github.com/tyneline/dispatch/infra/logger"
	inframetrics "github.com/tyneline/dispatch/infra/metrics"
	infraregistry "github.com/tyneline/dispatch/infra/registry"
	infrarouting "github.com/tyneline/dispatch/infra/routing"
	"github.com/tyneline/dispatch/internal/eventbus"
)

// Service orchestrates the engine and its HTTP surface.
type Service struct {
	Registry   coreregistry.Registry
	Manager    *schedule.Manager
	Classifier *availability.Classifier
	Fares      *fare.Calculator
	Status     *fleetstatus.MemoryStore

	bus         eventbus.EventBus
	auditStore  audit.Store
	log         logger.Logger
	httpAddr    string
	apiToken    string
	promEnabled bool
	promAddr    string
	feed        *board.PahoFeed
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	reg, err := buildRegistry(cfg.Registry)
	if err != nil {
		return nil, err
	}

	val, err := validate.New(reg, cfg.Validation, logger.New("validate"))
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}

	routes, err := buildRouting(cfg.Routing)
	if err != nil {
		return nil, err
	}
	fares, err := fare.New(cfg.Fare, routes, logger.New("fare"))
	if err != nil {
		return nil, fmt.Errorf("fare calculator: %w", err)
	}

	classifier, err := availability.New(reg, val, cfg.Availability, logger.New("availability"))
	if err != nil {
		return nil, fmt.Errorf("availability classifier: %w", err)
	}

	manager, err := schedule.NewManager(reg, val, cfg.Schedule, logger.New("schedule"))
	if err != nil {
		return nil, fmt.Errorf("schedule manager: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := inframetrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, inframetrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	if len(sinks) == 1 {
		manager.SetSink(sinks[0])
	} else if len(sinks) > 1 {
		manager.SetSink(inframetrics.NewMultiSink(sinks...))
	}

	store, err := buildAuditStore(cfg.Audit)
	if err != nil {
		return nil, err
	}
	manager.SetAuditStore(store)
	manager.SetFareCalculator(fares)

	bus := eventbus.New()
	manager.SetEventBus(bus)

	svc := &Service{
		Registry:    reg,
		Manager:     manager,
		Classifier:  classifier,
		Fares:       fares,
		Status:      fleetstatus.NewMemoryStore(),
		bus:         bus,
		auditStore:  store,
		log:         logg,
		httpAddr:    cfg.Server.Addr,
		apiToken:    cfg.Server.APIToken,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}

	if cfg.Board.Enabled {
		feed, err := board.NewPahoFeed(cfg.Board)
		if err != nil {
			return nil, fmt.Errorf("board feed: %w", err)
		}
		manager.SetBoardFeed(feed)
		svc.feed = feed
	}

	return svc, nil
}

func buildRegistry(cfg config.RegistryConfig) (coreregistry.Registry, error) {
	switch cfg.Backend {
	case "postgres":
		pg, err := infraregistry.NewPostgres(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres registry: %w", err)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("postgres registry: %w", err)
		}
		return pg, nil
	default:
		return coreregistry.NewMemory(), nil
	}
}

func buildRouting(cfg infrarouting.Config) (coreroute.Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider, err := infrarouting.NewHTTPProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("routing client: %w", err)
	}
	if !cfg.CacheEnabled {
		return provider, nil
	}
	cached, err := infrarouting.NewCachedProvider(provider, cfg.CacheURL,
		time.Duration(cfg.CacheTTLMin)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("routing cache: %w", err)
	}
	return cached, nil
}

func buildAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return audit.NewSQLiteStore(cfg.Path)
	default:
		return audit.NewJSONLStore(cfg.Path)
	}
}

// Handler builds the HTTP routing table.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/allocate", allocation.NewAllocateHandler(s.Manager))
	mux.Handle("/api/auto-assign", allocation.NewAutoAssignHandler(s.Manager))
	mux.Handle("/api/check-availability", allocation.NewAvailabilityHandler(s.Classifier))
	mux.Handle("/api/fare-estimate", allocation.NewFareHandler(s.Fares))
	mux.Handle("/api/schedule/logs", schedulelogs.NewLogHandler(s.auditStore, s.apiToken))
	mux.Handle("/api/fleet/status", apifleet.NewStatusHandler(s.Status))
	return mux
}

// Run starts the HTTP server and the status watcher, blocking until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.watchAssignments(ctx)

	if s.promEnabled {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.httpAddr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.httpAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// watchAssignments mirrors assignment events into the fleet status store.
func (s *Service) watchAssignments(ctx context.Context) {
	sub, cancel := eventbus.SubscribeTo[events.JobAssigned](s.bus)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-sub:
			if !ok {
				return
			}
			s.Status.RecordPlacement(a.VehicleID, fleetstatus.LastPlacement{
				JobID:     a.JobID,
				Reference: a.Reference,
				Auto:      a.Auto,
				Time:      a.Start,
			})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.feed != nil {
		s.feed.Disconnect()
	}
	return s.Manager.Close()
}
