package wire

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/jeffasante/photo-mood/internal/errs"
	"github.com/jeffasante/photo-mood/internal/jsoncodec"
)

func TestNewJobEncodesContent(t *testing.T) {
	content := []byte{0x89, 0x50, 0x4e, 0x47}
	before := time.Now().UnixMilli()
	job := NewJob("01ARZ3NDEKTSV4RRFFQ69G5FAV", "sunset.png", content)
	after := time.Now().UnixMilli()

	decoded, err := base64.StdEncoding.DecodeString(job.Payload)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if string(decoded) != string(content) {
		t.Fatalf("expected payload round trip, got %v", decoded)
	}
	if job.Timestamp < before || job.Timestamp > after {
		t.Fatalf("expected timestamp between %d and %d, got %d", before, after, job.Timestamp)
	}
}

func TestJobEncodeFieldNames(t *testing.T) {
	job := NewJob("id-1", "a.png", []byte("x"))
	raw, err := job.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var fields map[string]any
	if err := jsoncodec.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"correlationId", "fileName", "payload", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected key %q in encoded job, got %#v", key, fields)
		}
	}
}

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "success result",
			payload: `{"requestId":"abc","success":true,"data":{"tags":["calm"]},"worker":"mood-worker-1","processedAt":"2024-06-01T12:00:00Z"}`,
		},
		{
			name:    "failure result",
			payload: `{"requestId":"abc","success":false,"error":"decode failed","worker":"thumb-worker-2","processedAt":"2024-06-01T12:00:00Z"}`,
		},
		{
			name:    "not json",
			payload: `{{{`,
			wantErr: true,
		},
		{
			name:    "missing request id",
			payload: `{"success":true,"data":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DecodeResult([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.RequestID != "abc" {
				t.Fatalf("expected request id to survive decoding, got %q", res.RequestID)
			}
		})
	}
}

func TestDecodeResultMissingRequestIDSentinel(t *testing.T) {
	_, err := DecodeResult([]byte(`{"success":true}`))
	if !errors.Is(err, errs.ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}

func TestDecodeResultFailureWithoutDetail(t *testing.T) {
	res, err := DecodeResult([]byte(`{"requestId":"abc","success":false}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected a placeholder error message for failures without detail")
	}
}
