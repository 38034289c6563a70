// Package wire defines the JSON messages exchanged with the worker pools:
// jobs pushed onto the per-service work queues and results read back from
// the per-service result topics.
package wire

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jeffasante/photo-mood/internal/errs"
	"github.com/jeffasante/photo-mood/internal/jsoncodec"
)

// Job is the message dispatched to a worker queue. The image content rides
// along base64-encoded; workers decode it themselves.
type Job struct {
	CorrelationID string `json:"correlationId"`
	FileName      string `json:"fileName"`
	Payload       string `json:"payload"`
	Timestamp     int64  `json:"timestamp"`
}

// NewJob builds a Job for the supplied image content, stamped with the
// current time in epoch milliseconds.
func NewJob(correlationID, fileName string, content []byte) Job {
	return Job{
		CorrelationID: correlationID,
		FileName:      fileName,
		Payload:       base64.StdEncoding.EncodeToString(content),
		Timestamp:     time.Now().UnixMilli(),
	}
}

// Encode serializes the job for publishing.
func (j Job) Encode() ([]byte, error) {
	return jsoncodec.Marshal(j)
}

// Result is the reply a worker publishes on its result topic. Exactly one of
// Data or Error is meaningful depending on Success.
type Result struct {
	RequestID   string         `json:"requestId"`
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	Worker      string         `json:"worker"`
	ProcessedAt string         `json:"processedAt"`
}

// DecodeResult parses a result payload. A payload that does not parse, or
// that carries no request id, is malformed; the listener drops such messages
// without stopping.
func DecodeResult(payload []byte) (Result, error) {
	var res Result
	if err := jsoncodec.Unmarshal(payload, &res); err != nil {
		return Result{}, fmt.Errorf("malformed result payload: %w", err)
	}
	if res.RequestID == "" {
		return Result{}, errs.ErrMissingRequestID
	}
	if !res.Success && res.Error == "" {
		res.Error = "worker reported failure without detail"
	}
	return res, nil
}
