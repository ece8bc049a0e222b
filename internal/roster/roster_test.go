package roster

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLister struct {
	entries []Entry
	err     error
	calls   int
}

func (f *fakeLister) ListStudents(_ context.Context, _ string) ([]Entry, error) {
	f.calls++
	return f.entries, f.err
}

func TestSemester_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  Semester
	}{
		{`{"semester":"5"}`, "5"},
		{`{"semester":5}`, "5"},
		{`{"semester":""}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		var e Entry
		if err := json.Unmarshal([]byte(tt.input), &e); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.input, err)
		}
		if e.Semester != tt.want {
			t.Errorf("Unmarshal(%s): expected semester %q, got %q", tt.input, tt.want, e.Semester)
		}
	}

	var e Entry
	if err := json.Unmarshal([]byte(`{"semester":true}`), &e); err == nil {
		t.Error("expected boolean semester to fail")
	}
}

func TestRoster_LookupAndEnrolled(t *testing.T) {
	r := New("CSE", []Entry{
		{AdmissionNo: "E220150", Name: "Ravi", FaceEnrolled: true},
		{AdmissionNo: "E220160", Name: "Asha"},
		{AdmissionNo: "", Name: "ignored"},
	})

	if !r.IsEnrolled("E220150") {
		t.Error("expected E220150 to be enrolled")
	}

	if !r.IsEnrolled(" e220150 ") {
		t.Error("expected lookup to ignore case and surrounding space")
	}

	if r.IsEnrolled("E220160") {
		t.Error("expected E220160 to be pending")
	}

	if r.IsEnrolled("E999999") {
		t.Error("expected unknown student to be not enrolled")
	}

	if len(r.Entries()) != 2 {
		t.Errorf("expected 2 entries, got %d", len(r.Entries()))
	}
}

func TestRoster_MarkEnrolled(t *testing.T) {
	r := New("CSE", []Entry{{AdmissionNo: "E220160", Name: "Asha"}})

	r.MarkEnrolled("E220160")
	r.MarkEnrolled("E000000")

	if !r.IsEnrolled("E220160") {
		t.Error("expected E220160 to be enrolled after MarkEnrolled")
	}

	if len(r.Pending()) != 0 {
		t.Errorf("expected no pending students, got %d", len(r.Pending()))
	}
}

func TestLoad(t *testing.T) {
	l := &fakeLister{entries: []Entry{{AdmissionNo: "E1", Name: "A"}, {AdmissionNo: "E2", Name: "B"}}}

	r, err := Load(context.Background(), l, "ECE")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if r.Branch() != "ECE" {
		t.Errorf("expected branch ECE, got %q", r.Branch())
	}

	l.entries = []Entry{{AdmissionNo: "E3", Name: "C", FaceEnrolled: true}}
	if err := r.Reload(context.Background(), l); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if _, ok := r.Lookup("E1"); ok {
		t.Error("expected reload to replace entries")
	}

	if !r.IsEnrolled("E3") {
		t.Error("expected E3 to be enrolled after reload")
	}
}

func TestLoad_Error(t *testing.T) {
	wantErr := errors.New("unauthorized")
	_, err := Load(context.Background(), &fakeLister{err: wantErr}, "CSE")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped lister error, got %v", err)
	}
}

// scriptedLister returns one scripted reply per call, then repeats the last.
type scriptedLister struct {
	mu      sync.Mutex
	replies []error
	entries []Entry
	calls   int
}

func (s *scriptedLister) ListStudents(_ context.Context, _ string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	if err := s.replies[i]; err != nil {
		return nil, err
	}
	return s.entries, nil
}

func TestWatch_ReloadsAndKeepsEntriesOnError(t *testing.T) {
	r := New("CSE", []Entry{{AdmissionNo: "E1", Name: "A"}})
	l := &scriptedLister{
		replies: []error{errors.New("backend down"), nil},
		entries: []Entry{{AdmissionNo: "E1", Name: "A", FaceEnrolled: true}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, l, 5*time.Millisecond, func(err error) { errs <- err })
	}()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected reload error to be reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failed reload")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !r.IsEnrolled("E1") {
		if time.Now().After(deadline) {
			t.Fatal("expected a later reload to pick up the enrollment")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := r.Lookup("E1"); !ok {
		t.Error("expected entries to survive the failed reload")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
