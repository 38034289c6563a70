package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeffasante/photo-mood/internal/config"
	"github.com/jeffasante/photo-mood/internal/logging"
)

// dispatch publishes one job to one worker queue, retrying with a linearly
// growing backoff. When every attempt fails the service is recorded as
// failed for this request, which completes it fail-fast instead of letting
// the deadline run out on a job that never left the process.
func (s *Service) dispatch(ctx context.Context, route config.ServiceRoute, id string, body []byte) {
	ctx, span := s.tracer.Start(ctx, "DispatchJob")
	span.SetAttributes(
		attribute.String("correlation_id", id),
		attribute.String("queue", route.Queue),
		attribute.String("service", route.Tag),
	)
	defer span.End()

	attempts := s.Conf.DispatchAttempts
	interval := s.Conf.DispatchInterval

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg := message.NewMessage(id, body)
		msg.SetContext(ctx)

		lastErr = s.publisher.Publish(route.Queue, msg)
		if lastErr == nil {
			s.Logger.Debug("Dispatched job", logging.LogFields{
				"correlation_id": id,
				"queue":          route.Queue,
				"attempt":        attempt,
			})
			return
		}

		s.Logger.Error("Failed to publish job", lastErr, logging.LogFields{
			"correlation_id": id,
			"queue":          route.Queue,
			"attempt":        attempt,
			"max_attempts":   attempts,
		})

		if attempt == attempts {
			break
		}
		s.metrics.DispatchRetry(route.Queue)

		select {
		case <-time.After(time.Duration(attempt) * interval):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = attempts
		}
	}

	s.metrics.DispatchFailure(route.Queue)
	s.coordinator.ResolveError(ctx, id, route.Tag,
		fmt.Sprintf("dispatch to %s failed: %v", route.Queue, lastErr))
}
