// Package roster keeps the branch student list the capture flow consults
// before enrolling a face.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is one student as listed by the backend.
type Entry struct {
	AdmissionNo    string   `json:"admission_no"`
	Name           string   `json:"name"`
	FatherName     string   `json:"father_name,omitempty"`
	Village        string   `json:"village,omitempty"`
	Branch         string   `json:"branch,omitempty"`
	Specialization string   `json:"specialization,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	DOB            string   `json:"dob,omitempty"`
	Semester       Semester `json:"semester,omitempty"`
	FaceEnrolled   bool     `json:"face_enrolled"`
}

// Semester is stored as a string; older records carry it as a number.
type Semester string

// UnmarshalJSON accepts both "3" and 3.
func (s *Semester) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Semester(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("semester must be a string or number: %w", err)
	}
	if n, err := num.Int64(); err == nil {
		*s = Semester(strconv.FormatInt(n, 10))
		return nil
	}
	*s = Semester(num.String())
	return nil
}

// Lister fetches the students of a branch.
type Lister interface {
	ListStudents(ctx context.Context, branch string) ([]Entry, error)
}

// Roster is an in-memory copy of one branch, keyed by admission number.
type Roster struct {
	mu      sync.RWMutex
	branch  string
	entries map[string]Entry
	order   []string
}

// New creates a roster from the given entries.
func New(branch string, entries []Entry) *Roster {
	r := &Roster{branch: branch}
	r.replace(entries)
	return r
}

// Load fetches a branch from the lister.
func Load(ctx context.Context, l Lister, branch string) (*Roster, error) {
	entries, err := l.ListStudents(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("could not load roster for %s: %w", branch, err)
	}
	return New(branch, entries), nil
}

// Reload replaces the entries with a fresh listing.
func (r *Roster) Reload(ctx context.Context, l Lister) error {
	entries, err := l.ListStudents(ctx, r.Branch())
	if err != nil {
		return fmt.Errorf("could not reload roster for %s: %w", r.Branch(), err)
	}
	r.replace(entries)
	return nil
}

// Watch reloads the roster every interval until ctx is done, so faces
// enrolled elsewhere reach the enrolled pre-check. Failed reloads keep the
// current entries and are passed to onError.
func (r *Roster) Watch(ctx context.Context, l Lister, interval time.Duration, onError func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Reload(ctx, l); err != nil && ctx.Err() == nil && onError != nil {
				onError(err)
			}
		}
	}
}

func (r *Roster) replace(entries []Entry) {
	m := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		key := normalize(e.AdmissionNo)
		if key == "" {
			continue
		}
		if _, dup := m[key]; !dup {
			order = append(order, key)
		}
		m[key] = e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = m
	r.order = order
}

// Branch returns the branch the roster was loaded for.
func (r *Roster) Branch() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branch
}

// Lookup returns the entry for an admission number.
func (r *Roster) Lookup(admissionNo string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalize(admissionNo)]
	return e, ok
}

// IsEnrolled reports whether the student already has a face on record.
// Unknown students are not enrolled.
func (r *Roster) IsEnrolled(admissionNo string) bool {
	e, ok := r.Lookup(admissionNo)
	return ok && e.FaceEnrolled
}

// MarkEnrolled flags a student as enrolled after a successful enrollment.
func (r *Roster) MarkEnrolled(admissionNo string) {
	key := normalize(admissionNo)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.FaceEnrolled = true
	r.entries[key] = e
}

// Entries returns the students in listing order.
func (r *Roster) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key])
	}
	return out
}

// Pending returns the students without an enrolled face.
func (r *Roster) Pending() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if !e.FaceEnrolled {
			out = append(out, e)
		}
	}
	return out
}

func normalize(admissionNo string) string {
	return strings.ToUpper(strings.TrimSpace(admissionNo))
}
