package fanin

import (
	"reflect"
	"testing"
)

func TestAssembleMergesInFanOutOrder(t *testing.T) {
	entry := &Entry{
		CorrelationID: "id",
		Expected:      []string{"mood", "thumbnail"},
		Received: map[string]map[string]any{
			"mood":      {"tags": []string{"calm"}},
			"thumbnail": {"width": 200, "height": 150},
		},
	}

	out := assemble(entry)
	if out.Status != StatusComplete {
		t.Fatalf("expected complete status, got %q", out.Status)
	}
	want := map[string]any{
		"tags":   []string{"calm"},
		"width":  200,
		"height": 150,
	}
	if !reflect.DeepEqual(out.Data, want) {
		t.Fatalf("merged data mismatch:\n got %#v\nwant %#v", out.Data, want)
	}
}

func TestAssembleLaterServiceWinsOnKeyCollision(t *testing.T) {
	entry := &Entry{
		CorrelationID: "id",
		Expected:      []string{"mood", "thumbnail"},
		Received: map[string]map[string]any{
			"mood":      {"size": 1},
			"thumbnail": {"size": 2},
		},
	}

	out := assemble(entry)
	if out.Data["size"] != 2 {
		t.Fatalf("expected thumbnail value to win, got %v", out.Data["size"])
	}
}

func TestAssembleStatuses(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  Status
	}{
		{
			name: "errors yield partial",
			entry: &Entry{
				Expected: []string{"mood", "thumbnail"},
				Received: map[string]map[string]any{"mood": {"tags": []string{"calm"}}},
				Errors:   []ServiceError{{Service: "thumbnail", Error: "decode failed"}},
			},
			want: StatusPartial,
		},
		{
			name: "deadline yields timeout",
			entry: &Entry{
				Expected: []string{"mood"},
				Received: map[string]map[string]any{},
				TimedOut: true,
			},
			want: StatusTimedOut,
		},
		{
			name: "timeout outranks errors",
			entry: &Entry{
				Expected: []string{"mood"},
				Received: map[string]map[string]any{},
				Errors:   []ServiceError{{Service: "mood", Error: "boom"}},
				TimedOut: true,
			},
			want: StatusTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := assemble(tt.entry).Status; got != tt.want {
				t.Fatalf("expected status %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOutcomeHasData(t *testing.T) {
	if (Outcome{}).HasData() {
		t.Fatal("empty outcome should report no data")
	}
	if !(Outcome{Data: map[string]any{"width": 200}}).HasData() {
		t.Fatal("outcome with a payload should report data")
	}
}
