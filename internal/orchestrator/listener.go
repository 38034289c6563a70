package orchestrator

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeffasante/photo-mood/internal/config"
	"github.com/jeffasante/photo-mood/internal/logging"
	"github.com/jeffasante/photo-mood/internal/wire"
)

// resultHandler consumes one worker's result topic and routes each reply
// into the correlation core. It always acks: a malformed reply is logged and
// dropped rather than redelivered, since it will never parse on a retry, and
// a reply for an unknown correlation id is the normal late-delivery case.
func (s *Service) resultHandler(route config.ServiceRoute) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		ctx, span := s.tracer.Start(ctx, "ConsumeResult")
		span.SetAttributes(
			attribute.String("topic", route.ResultsTopic),
			attribute.String("service", route.Tag),
			attribute.String("message_uuid", msg.UUID),
		)
		defer span.End()

		res, err := wire.DecodeResult(msg.Payload)
		if err != nil {
			s.metrics.DecodeFailure(route.ResultsTopic)
			s.Logger.Error("Dropping malformed result message", err, logging.LogFields{
				"topic":        route.ResultsTopic,
				"service":      route.Tag,
				"message_uuid": msg.UUID,
			})
			return nil
		}

		if res.Success {
			s.coordinator.ResolveSuccess(ctx, res.RequestID, route.Tag, res.Data)
		} else {
			s.coordinator.ResolveError(ctx, res.RequestID, route.Tag, res.Error)
		}
		return nil
	}
}
