package fanin

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeffasante/photo-mood/internal/logging"
)

// Coordinator ties the pending request table to its timeout supervision and
// drives every completion path: natural completion, fail-fast on error,
// deadline expiry, explicit abort, and shutdown drain. Whichever path takes
// the entry first wins; the table makes every other path a no-op.
type Coordinator struct {
	table    *Table
	deadline time.Duration
	logger   logging.ServiceLogger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewCoordinator builds a coordinator with the given per-request deadline.
func NewCoordinator(deadline time.Duration, logger logging.ServiceLogger, metrics *Metrics) *Coordinator {
	return &Coordinator{
		table:    NewTable(),
		deadline: deadline,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("photo-mood/fanin"),
	}
}

// Admit registers a request before its jobs are dispatched, so a reply can
// never arrive ahead of registration, and arms the one-shot deadline.
func (c *Coordinator) Admit(id string, expected []string, hook CompletionFunc) error {
	_, err := c.table.Register(id, expected, hook, func() *time.Timer {
		return time.AfterFunc(c.deadline, func() {
			c.expire(id)
		})
	})
	if err != nil {
		return err
	}

	c.metrics.Admitted()
	c.logger.Debug("Registered pending request", logging.LogFields{
		"correlation_id": id,
		"expected":       expected,
		"deadline":       c.deadline.String(),
	})
	return nil
}

// ResolveSuccess routes a successful worker reply into the table. Replies
// for ids no longer in flight are the expected steady state for late or
// duplicate deliveries and are discarded quietly.
func (c *Coordinator) ResolveSuccess(ctx context.Context, id, service string, data map[string]any) {
	finalized, found := c.table.RecordSuccess(id, service, data)
	c.afterResolve(ctx, id, service, finalized, found, true)
}

// ResolveError records a failure for one service: a worker-reported error or
// an exhausted dispatch. Under the fail-fast policy the first error
// completes the request immediately instead of waiting out the deadline.
func (c *Coordinator) ResolveError(ctx context.Context, id, service, message string) {
	finalized, found := c.table.RecordError(id, service, message)
	c.afterResolve(ctx, id, service, finalized, found, false)
}

func (c *Coordinator) afterResolve(ctx context.Context, id, service string, finalized *Entry, found, success bool) {
	_, span := c.tracer.Start(ctx, "ResolveReply")
	span.SetAttributes(
		attribute.String("correlation_id", id),
		attribute.String("service", service),
		attribute.Bool("success", success),
		attribute.Bool("in_flight", found),
	)
	defer span.End()

	if !found {
		c.metrics.LateReply(service)
		c.logger.Debug("Discarding reply for correlation id no longer in flight", logging.LogFields{
			"correlation_id": id,
			"service":        service,
		})
		return
	}
	if finalized != nil {
		c.deliver(finalized, assemble(finalized))
	}
}

// expire is the deadline path. Losing the race against natural completion is
// a no-op; the AfterFunc timer has already fired, so there is nothing left
// to release on that side.
func (c *Coordinator) expire(id string) {
	entry, ok := c.table.Expire(id)
	if !ok {
		return
	}

	c.logger.Info("Deadline fired before completion, delivering partial result", logging.LogFields{
		"correlation_id": id,
		"received":       len(entry.Received),
		"errors":         len(entry.Errors),
	})
	c.deliver(entry, assemble(entry))
}

// Abort finalizes a request outside the reply/deadline paths, e.g. when the
// caller disconnected. Reports whether this call won the entry.
func (c *Coordinator) Abort(id string) bool {
	entry, ok := c.table.Take(id)
	if !ok {
		return false
	}

	out := assemble(entry)
	out.Status = StatusAborted
	c.deliver(entry, out)
	return true
}

// Shutdown finalizes every request still pending so no caller is left
// hanging, and closes the table against new admissions. Call before the
// transport connections are released.
func (c *Coordinator) Shutdown() {
	drained := c.table.Drain()
	if len(drained) > 0 {
		c.logger.Info("Finalizing pending requests on shutdown", logging.LogFields{
			"pending": len(drained),
		})
	}
	for _, entry := range drained {
		out := assemble(entry)
		out.Status = StatusAborted
		c.deliver(entry, out)
	}
}

// InFlight reports the number of correlation ids currently pending.
func (c *Coordinator) InFlight() int {
	return c.table.Len()
}

// deliver cancels the deadline and invokes the completion hook. Callers only
// reach it holding an entry taken from the table, so the hook fires exactly
// once per correlation id.
func (c *Coordinator) deliver(entry *Entry, out Outcome) {
	if entry.timer != nil {
		entry.timer.Stop()
	}

	c.metrics.Completed(out.Status)
	c.logger.Info("Completed request", logging.LogFields{
		"correlation_id": out.CorrelationID,
		"status":         string(out.Status),
		"warnings":       len(out.Warnings),
		"elapsed":        time.Since(entry.RegisteredAt).String(),
	})
	entry.complete(out)
}
