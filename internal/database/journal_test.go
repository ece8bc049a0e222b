package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

func TestRecordFromSnapshot_Success(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	s := capture.Snapshot{
		FlowID:  "flow-1",
		State:   capture.StateSuccess,
		Attempt: 3,
		Request: capture.MarkRequest("CSE"),
		Outcome: &capture.Outcome{Student: "Asha", AdmissionNo: "E220160", Confidence: 0.93, Message: "Attendance marked"},
	}

	rec := RecordFromSnapshot(s, at)
	if rec.FlowID != "flow-1" || rec.Attempt != 3 || rec.Mode != "mark" || rec.Subject != "CSE" {
		t.Errorf("unexpected identity fields %+v", rec)
	}
	if rec.Student != "Asha" || rec.Confidence != 0.93 || rec.State != "success" {
		t.Errorf("unexpected outcome fields %+v", rec)
	}
	if rec.RecordedAt.Location() != time.UTC || !rec.RecordedAt.Equal(at) {
		t.Errorf("expected UTC timestamp equal to %v, got %v", at, rec.RecordedAt)
	}
	if rec.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a generated id")
	}
}

func TestRecordFromSnapshot_DuplicateFailure(t *testing.T) {
	s := capture.Snapshot{
		FlowID:  "flow-2",
		State:   capture.StateError,
		Attempt: 1,
		Request: capture.EnrollRequest("E220160", "Asha"),
		Failure: &capture.Failure{
			Kind:    capture.FailureBackend,
			Reason:  capture.ReasonDuplicateFace,
			Message: "Face already enrolled for Ravi (E220150)",
		},
		Duplicate:   &notify.DuplicateWarning{Message: "Face already enrolled for Ravi (E220150)"},
		AwaitingAck: true,
	}

	rec := RecordFromSnapshot(s, time.Now())
	if rec.FailureKind != "backend" || rec.FailureReason != "duplicate_face" {
		t.Errorf("unexpected failure fields %+v", rec)
	}
	if rec.Message != s.Failure.Message {
		t.Errorf("expected verbatim message, got %q", rec.Message)
	}
	if rec.Subject != "E220160" || rec.AdmissionNo != "E220160" {
		t.Errorf("expected enrollment subject, got %+v", rec)
	}
}

func TestRecordable(t *testing.T) {
	tests := []struct {
		state capture.State
		want  bool
	}{
		{capture.StateIdle, false},
		{capture.StateStarting, false},
		{capture.StateDetecting, false},
		{capture.StateProcessing, false},
		{capture.StateDuplicateWarning, false},
		{capture.StateSuccess, true},
		{capture.StateNoMatch, true},
		{capture.StateError, true},
	}
	for _, tt := range tests {
		if got := Recordable(capture.Snapshot{State: tt.state}); got != tt.want {
			t.Errorf("Recordable(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(3)
	for i, state := range []string{"success", "no_match", "error", "success"} {
		if err := j.Record(ctx, OutcomeRecord{FlowID: "f", Attempt: uint64(i + 1), State: state}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	if j.Len() != 3 {
		t.Fatalf("expected capacity to cap the journal at 3, got %d", j.Len())
	}

	recent, _ := j.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].Attempt != 4 || recent[1].Attempt != 3 {
		t.Errorf("expected newest first [4 3], got %+v", recent)
	}

	all, _ := j.Recent(ctx, 0)
	if len(all) != 3 || all[2].Attempt != 2 {
		t.Errorf("expected oldest record dropped, got %+v", all)
	}

	counts, _ := j.CountByState(ctx)
	if counts["success"] != 1 || counts["no_match"] != 1 || counts["error"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

type failingJournal struct {
	mu    sync.Mutex
	calls int
}

func (f *failingJournal) Record(context.Context, OutcomeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("connection refused")
}

func (f *failingJournal) Recent(context.Context, int) ([]OutcomeRecord, error) { return nil, nil }

func (f *failingJournal) CountByState(context.Context) (map[string]int, error) { return nil, nil }

func TestRecorder_RecordsEachAttemptOnce(t *testing.T) {
	j := NewMemoryJournal(10)
	r := NewRecorder(j)

	success := capture.Snapshot{FlowID: "f", Attempt: 1, State: capture.StateSuccess, Request: capture.MarkRequest("CSE")}
	r.Observe(capture.Snapshot{FlowID: "f", Attempt: 1, State: capture.StateProcessing})
	r.Observe(success)
	r.Observe(success)
	r.Observe(capture.Snapshot{FlowID: "f", Attempt: 2, State: capture.StateDuplicateWarning})
	r.Observe(capture.Snapshot{FlowID: "f", Attempt: 2, State: capture.StateError, Failure: &capture.Failure{Kind: capture.FailureBackend}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if j.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", j.Len())
	}
	recent, _ := j.Recent(context.Background(), 0)
	if recent[0].State != "error" || recent[1].State != "success" {
		t.Errorf("unexpected records %+v", recent)
	}
}

func TestRecorder_JournalErrorsAreLogged(t *testing.T) {
	j := &failingJournal{}
	r := NewRecorder(j)
	r.Observe(capture.Snapshot{FlowID: "f", Attempt: 1, State: capture.StateNoMatch})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	if j.calls != 1 {
		t.Errorf("expected one write attempt, got %d", j.calls)
	}
}

func TestGetJournal_FallsBackToMemory(t *testing.T) {
	RegisterPostgresBackend(nil)
	if IsInitialized() {
		t.Fatal("expected no postgres backend")
	}
	first := GetJournal()
	if _, ok := first.(*MemoryJournal); !ok {
		t.Fatalf("expected *MemoryJournal, got %T", first)
	}
	if GetJournal() != first {
		t.Error("expected the same process-wide memory journal")
	}
}

func TestBackendName_FollowsRegistration(t *testing.T) {
	sql := NewMemoryJournal(1)
	RegisterMariaDBBackend(func() Journal { return sql })
	t.Cleanup(func() { RegisterMariaDBBackend(nil) })

	if got := BackendName(); got != BackendMariaDB {
		t.Fatalf("expected %s, got %s", BackendMariaDB, got)
	}
	if GetJournal() != Journal(sql) {
		t.Error("expected the registered journal")
	}

	// Unregistering a different backend leaves the active one alone.
	RegisterPostgresBackend(nil)
	if !IsInitialized() {
		t.Error("expected mariadb backend to stay registered")
	}

	RegisterMariaDBBackend(nil)
	if got := BackendName(); got != BackendMemory {
		t.Errorf("expected %s after unregister, got %s", BackendMemory, got)
	}
}

func TestRecorder_KeepsOneEntryPerFlow(t *testing.T) {
	r := NewRecorder(NewMemoryJournal(10))
	for attempt := uint64(1); attempt <= 50; attempt++ {
		r.Observe(capture.Snapshot{FlowID: "kiosk", Attempt: attempt, State: capture.StateNoMatch})
		<-r.queue
	}
	// A late snapshot from an older attempt is not recorded again.
	r.Observe(capture.Snapshot{FlowID: "kiosk", Attempt: 7, State: capture.StateNoMatch})
	r.Observe(capture.Snapshot{FlowID: "other", Attempt: 1, State: capture.StateSuccess, Request: capture.MarkRequest("CSE")})

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.last) != 2 {
		t.Errorf("expected one tracked attempt per flow, got %d", len(r.last))
	}
	if r.last["kiosk"] != 50 {
		t.Errorf("expected last attempt 50, got %d", r.last["kiosk"])
	}
	if len(r.queue) != 1 {
		t.Errorf("expected only the new flow queued, got %d", len(r.queue))
	}
}
