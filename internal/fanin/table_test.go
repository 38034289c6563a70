package fanin

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jeffasante/photo-mood/internal/errs"
)

func noopHook(Outcome) {}

func TestRegisterValidations(t *testing.T) {
	table := NewTable()

	if _, err := table.Register("id", nil, noopHook, nil); !errors.Is(err, errs.ErrNoExpectedServices) {
		t.Fatalf("expected ErrNoExpectedServices, got %v", err)
	}
	if _, err := table.Register("id", []string{"mood"}, nil, nil); !errors.Is(err, errs.ErrCompletionHookRequired) {
		t.Fatalf("expected ErrCompletionHookRequired, got %v", err)
	}
	if _, err := table.Register("id", []string{"mood"}, noopHook, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := table.Register("id", []string{"mood"}, noopHook, nil); !errors.Is(err, errs.ErrDuplicateCorrelationID) {
		t.Fatalf("expected ErrDuplicateCorrelationID, got %v", err)
	}
}

func TestRegisterArmsTimerUnderLock(t *testing.T) {
	table := NewTable()
	armed := false
	entry, err := table.Register("id", []string{"mood"}, noopHook, func() *time.Timer {
		armed = true
		return time.NewTimer(time.Hour)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !armed || entry.timer == nil {
		t.Fatal("expected deadline timer to be armed during registration")
	}
	entry.timer.Stop()
}

func TestRecordSuccessCompletesWhenAllServicesReport(t *testing.T) {
	table := NewTable()
	if _, err := table.Register("id", []string{"mood", "thumbnail"}, noopHook, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	finalized, found := table.RecordSuccess("id", "thumbnail", map[string]any{"width": 200})
	if !found {
		t.Fatal("expected entry to be found")
	}
	if finalized != nil {
		t.Fatal("expected entry to still be waiting for mood")
	}

	finalized, found = table.RecordSuccess("id", "mood", map[string]any{"tags": []string{"calm"}})
	if !found || finalized == nil {
		t.Fatal("expected second reply to complete the entry")
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table after completion, got %d", table.Len())
	}
}

func TestRecordSuccessKeepsFirstReplyPerService(t *testing.T) {
	table := NewTable()
	if _, err := table.Register("id", []string{"mood", "thumbnail"}, noopHook, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if finalized, found := table.RecordSuccess("id", "mood", map[string]any{"tags": []string{"calm"}}); !found || finalized != nil {
		t.Fatal("expected first mood reply to be recorded without completing")
	}

	// A redelivered reply for the same service must not replace the payload
	// or count toward completion again.
	finalized, found := table.RecordSuccess("id", "mood", map[string]any{"tags": []string{"tampered"}})
	if !found {
		t.Fatal("expected entry to still be in flight")
	}
	if finalized != nil {
		t.Fatal("duplicate reply must not finalize the entry")
	}

	finalized, found = table.RecordSuccess("id", "thumbnail", map[string]any{"width": 200})
	if !found || finalized == nil {
		t.Fatal("expected thumbnail reply to complete the entry")
	}
	tags, ok := finalized.Received["mood"]["tags"].([]string)
	if !ok || len(tags) != 1 || tags[0] != "calm" {
		t.Fatalf("expected first mood payload to survive, got %#v", finalized.Received["mood"])
	}
}

func TestRecordErrorFailsFast(t *testing.T) {
	table := NewTable()
	if _, err := table.Register("id", []string{"mood", "thumbnail"}, noopHook, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	finalized, found := table.RecordError("id", "thumbnail", "decode failed")
	if !found || finalized == nil {
		t.Fatal("expected first error to complete the entry fail-fast")
	}
	if len(finalized.Errors) != 1 || finalized.Errors[0].Service != "thumbnail" {
		t.Fatalf("expected recorded error, got %#v", finalized.Errors)
	}
}

func TestRecordOnUnknownIDReportsNotFound(t *testing.T) {
	table := NewTable()

	if _, found := table.RecordSuccess("missing", "mood", nil); found {
		t.Fatal("expected success on unknown id to report not found")
	}
	if _, found := table.RecordError("missing", "mood", "boom"); found {
		t.Fatal("expected error on unknown id to report not found")
	}
}

func TestExpireMarksTimedOut(t *testing.T) {
	table := NewTable()
	if _, err := table.Register("id", []string{"mood", "thumbnail"}, noopHook, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	table.RecordSuccess("id", "thumbnail", map[string]any{"width": 200})

	entry, ok := table.Expire("id")
	if !ok {
		t.Fatal("expected expire to win the entry")
	}
	if !entry.TimedOut {
		t.Fatal("expected entry to be marked timed out")
	}
	if len(entry.Received) != 1 {
		t.Fatalf("expected partial data to be preserved, got %#v", entry.Received)
	}

	if _, ok := table.Expire("id"); ok {
		t.Fatal("expected second expire to lose")
	}
}

func TestTakeIsAtomicUnderRacingFinalizers(t *testing.T) {
	// A reply and a deadline racing on the same entry: exactly one of the
	// two paths may ever receive the finalized entry.
	for i := 0; i < 200; i++ {
		table := NewTable()
		if _, err := table.Register("id", []string{"mood"}, noopHook, nil); err != nil {
			t.Fatalf("register failed: %v", err)
		}

		var wg sync.WaitGroup
		wins := make(chan string, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			if finalized, _ := table.RecordSuccess("id", "mood", nil); finalized != nil {
				wins <- "reply"
			}
		}()
		go func() {
			defer wg.Done()
			if _, ok := table.Expire("id"); ok {
				wins <- "deadline"
			}
		}()

		wg.Wait()
		close(wins)

		var winners []string
		for w := range wins {
			winners = append(winners, w)
		}
		if len(winners) != 1 {
			t.Fatalf("iteration %d: expected exactly one winner, got %v", i, winners)
		}
	}
}

func TestDrainClosesTable(t *testing.T) {
	table := NewTable()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := table.Register(id, []string{"mood"}, noopHook, nil); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	drained := table.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained entries, got %d", len(drained))
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table after drain, got %d", table.Len())
	}
	if _, err := table.Register("d", []string{"mood"}, noopHook, nil); !errors.Is(err, errs.ErrTableClosed) {
		t.Fatalf("expected ErrTableClosed after drain, got %v", err)
	}
}
