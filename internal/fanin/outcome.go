package fanin

// Status classifies how a request reached its terminal state.
type Status string

const (
	// StatusComplete means every expected service delivered a payload.
	StatusComplete Status = "complete"

	// StatusPartial means at least one service reported an error and the
	// request completed fail-fast with whatever data had arrived.
	StatusPartial Status = "partial"

	// StatusTimedOut means the deadline fired before natural completion.
	StatusTimedOut Status = "timeout"

	// StatusAborted means the request was finalized by shutdown or an
	// explicit abort rather than by replies or the deadline.
	StatusAborted Status = "aborted"
)

// Outcome is the single terminal result delivered for a correlation id.
type Outcome struct {
	CorrelationID string
	Status        Status
	Data          map[string]any
	Warnings      []ServiceError
	TimedOut      bool
}

// HasData reports whether any service payload made it into the outcome.
func (o Outcome) HasData() bool {
	return len(o.Data) > 0
}

// assemble flattens the per-service payloads into one result object. Keys
// from different services are assumed non-colliding; when they do collide the
// later-merged service wins. Expected services merge first, in fan-out
// order, so the result is stable.
func assemble(e *Entry) Outcome {
	data := make(map[string]any)
	merged := make(map[string]bool, len(e.Received))
	for _, svc := range e.Expected {
		if payload, ok := e.Received[svc]; ok {
			mergeInto(data, payload)
			merged[svc] = true
		}
	}
	for svc, payload := range e.Received {
		if !merged[svc] {
			mergeInto(data, payload)
		}
	}

	status := StatusComplete
	switch {
	case e.TimedOut:
		status = StatusTimedOut
	case len(e.Errors) > 0:
		status = StatusPartial
	}

	return Outcome{
		CorrelationID: e.CorrelationID,
		Status:        status,
		Data:          data,
		Warnings:      append([]ServiceError(nil), e.Errors...),
		TimedOut:      e.TimedOut,
	}
}

func mergeInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
