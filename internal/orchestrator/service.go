// Package orchestrator accepts enrichment requests, fans each one out to the
// worker queues, and listens on the result topics to correlate the replies
// back into a single response per request.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeffasante/photo-mood/internal/config"
	"github.com/jeffasante/photo-mood/internal/errs"
	"github.com/jeffasante/photo-mood/internal/fanin"
	"github.com/jeffasante/photo-mood/internal/ids"
	"github.com/jeffasante/photo-mood/internal/logging"
	"github.com/jeffasante/photo-mood/internal/transport"
	"github.com/jeffasante/photo-mood/internal/wire"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators for a Service.
// Leave fields nil to use the defaults.
type ServiceDependencies struct {
	// Transport overrides the registry-built transport, mainly for tests.
	Transport *transport.Transport

	// Registry used to build the transport when Transport is nil.
	// Defaults to transport.DefaultRegistry.
	Registry *transport.Registry

	// Metrics registerer. Defaults to prometheus.DefaultRegisterer.
	Metrics prometheus.Registerer
}

// Service wires the Watermill router, the job publisher, and the result
// topic listeners around the correlation core.
type Service struct {
	Conf   *config.Config
	Logger logging.ServiceLogger

	coordinator *fanin.Coordinator
	metrics     *fanin.Metrics

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	tracer     trace.Tracer

	transportName string

	closeOnce sync.Once
	closeErr  error
}

// NewService constructs a Service for the supplied configuration. The result
// topic handlers are registered here; call Start to begin consuming.
func NewService(ctx context.Context, conf *config.Config, log logging.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if err := config.ValidateConfig(conf); err != nil {
		return nil, err
	}

	wmLogger := logging.NewWatermillAdapter(log)
	log.Info("Creating orchestrator service", logging.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"services":      conf.ServiceTags(),
	})

	registerer := deps.Metrics
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := fanin.NewMetrics(registerer)
	if err := metrics.Register(); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	var tr transport.Transport
	if deps.Transport != nil {
		tr = *deps.Transport
	} else {
		registry := deps.Registry
		if registry == nil {
			registry = transport.DefaultRegistry
		}
		built, err := registry.Build(ctx, conf, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("building transport: %w", err)
		}
		tr = built
	}
	if tr.Publisher == nil {
		return nil, errs.ErrPublisherRequired
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	s := &Service{
		Conf:          conf,
		Logger:        log,
		coordinator:   fanin.NewCoordinator(conf.RequestTimeout, log, metrics),
		metrics:       metrics,
		publisher:     tr.Publisher,
		subscriber:    tr.Subscriber,
		router:        router,
		tracer:        otel.Tracer("photo-mood/orchestrator"),
		transportName: conf.PubSubSystem,
	}

	for _, route := range conf.Services {
		router.AddNoPublisherHandler(
			"results-"+route.Tag,
			route.ResultsTopic,
			s.subscriber,
			s.resultHandler(route),
		)
	}

	return s, nil
}

// Start runs the underlying Watermill router until the provided context is
// cancelled. It blocks; run it from its own goroutine when the caller also
// serves HTTP.
func (s *Service) Start(ctx context.Context) error {
	return routerRun(s.router, ctx)
}

// Running returns a channel that is closed once all result topic handlers
// are consuming.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// IsRunning reports whether the router has started and not yet closed.
func (s *Service) IsRunning() bool {
	select {
	case <-s.router.Running():
		return !s.router.IsClosed()
	default:
		return false
	}
}

// TransportName reports which transport backend the service was built on.
func (s *Service) TransportName() string {
	return s.transportName
}

// InFlight reports the number of requests currently awaiting replies.
func (s *Service) InFlight() int {
	return s.coordinator.InFlight()
}

// Abort finalizes a pending request without waiting for replies or the
// deadline, e.g. when the HTTP caller went away.
func (s *Service) Abort(id string) bool {
	return s.coordinator.Abort(id)
}

// Close finalizes every pending request, stops the router, and releases the
// transport connections. Safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.coordinator.Shutdown()

		if err := s.router.Close(); err != nil {
			s.closeErr = fmt.Errorf("closing router: %w", err)
		}
		if err := s.publisher.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("closing publisher: %w", err)
		}
		s.Logger.Info("Orchestrator service closed", nil)
	})
	return s.closeErr
}

// Submit admits one enrichment request: it registers the correlation id,
// then dispatches a job carrying the image to every worker queue. The hook
// receives the single terminal outcome. Returns the correlation id.
func (s *Service) Submit(ctx context.Context, fileName string, payload []byte, hook fanin.CompletionFunc) (string, error) {
	if len(payload) == 0 {
		return "", errs.ErrEmptyUpload
	}

	id := ids.NewCorrelationID()
	job := wire.NewJob(id, fileName, payload)
	body, err := job.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}

	if err := s.coordinator.Admit(id, s.Conf.ServiceTags(), hook); err != nil {
		return "", err
	}

	s.Logger.Info("Accepted enrichment request", logging.LogFields{
		"correlation_id": id,
		"file_name":      fileName,
		"payload_bytes":  len(payload),
	})

	// Dispatch keeps going even if the caller's context ends first: an early
	// error response must not cancel a sibling queue's retry loop.
	dispatchCtx := context.WithoutCancel(ctx)
	for _, route := range s.Conf.Services {
		go s.dispatch(dispatchCtx, route, id, body)
	}

	return id, nil
}
