package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/frame"
)

const testPayload = frame.Payload("data:image/jpeg;base64,/9j/4AAQ")

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

// setupEnvelopeServer answers every request with the given status and body
// and counts the requests it receives.
func setupEnvelopeServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestClient(t *testing.T, url, token string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(url, token, opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5000", "ftp://host", "http://"} {
		if _, err := NewClient(raw, ""); err == nil {
			t.Errorf("NewClient(%q): expected error", raw)
		}
	}
}

func TestMarkAttendance_Match(t *testing.T) {
	var gotBody markRequest
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write(loadTestData(t, "mark_attendance_success.json"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/", "secret")
	result, err := c.MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	if gotPath != "/api/mark_attendance" {
		t.Errorf("expected path /api/mark_attendance, got %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotBody.Branch != "CSE" || gotBody.Image != string(testPayload) {
		t.Errorf("unexpected request body: %+v", gotBody)
	}

	if !result.Success() {
		t.Fatalf("expected match, got %+v", result)
	}
	if result.Student != "Asha" || result.AdmissionNo != "E220160" {
		t.Errorf("unexpected identity: %s (%s)", result.Student, result.AdmissionNo)
	}
	if result.Confidence != 0.93 {
		t.Errorf("expected confidence 0.93, got %v", result.Confidence)
	}
	if result.Session != "Morning" {
		t.Errorf("expected session Morning, got %q", result.Session)
	}
}

func TestMarkAttendance_NumericConfidence(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusOK,
		`{"success":true,"student":"Asha","admission_no":"E220160","confidence":0.5}`, nil)
	defer server.Close()

	result, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if result.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %v", result.Confidence)
	}
}

func TestMarkAttendance_ConfidenceOutOfRange(t *testing.T) {
	for _, conf := range []string{`"1.20"`, `"-0.1"`, `"NaN"`, `"high"`, `null`} {
		server := setupEnvelopeServer(t, http.StatusOK,
			`{"success":true,"student":"Asha","admission_no":"E220160","confidence":`+conf+`}`, nil)

		_, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
		server.Close()

		if !errors.Is(err, ErrConfidenceRange) {
			t.Errorf("confidence %s: expected ErrConfidenceRange, got %v", conf, err)
		}
		if be, ok := AsError(err); !ok || be.Kind != KindUnknown {
			t.Errorf("confidence %s: expected backend error of unknown kind, got %v", conf, err)
		}
	}
}

func TestMarkAttendance_NoMatchIsAmbiguous(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadRequest, `{"success":false,"error":"No match found"}`, nil)
	defer server.Close()

	result, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	if result.Status != RecognitionNoMatch {
		t.Errorf("expected no_match, got %s", result.Status)
	}
	if !result.Ambiguous {
		t.Error("expected a code-less rejection to be flagged ambiguous")
	}
	if result.Message != "No match found" {
		t.Errorf("expected verbatim message, got %q", result.Message)
	}
}

func TestMarkAttendance_CodedFailure(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadRequest,
		`{"success":false,"error":"No image provided","code":"validation"}`, nil)
	defer server.Close()

	result, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	if result.Status != RecognitionFailed || result.Kind != KindValidation {
		t.Errorf("expected validation failure, got %+v", result)
	}
	if result.Ambiguous {
		t.Error("expected coded failure not to be ambiguous")
	}
}

func TestMarkAttendance_ExplicitNoMatchCode(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadRequest,
		`{"success":false,"error":"Unknown face (confidence: 0.3)","code":"no_match"}`, nil)
	defer server.Close()

	result, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if result.Status != RecognitionNoMatch || result.Ambiguous {
		t.Errorf("expected unambiguous no_match, got %+v", result)
	}
}

// A 500 with a well-formed code-less rejection is still an ambiguous
// no-match for recognition, unlike enrollment.
func TestMarkAttendance_ServerErrorJSON(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusInternalServerError, `{"success":false,"error":"Recognition failed"}`, nil)
	defer server.Close()

	result, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if result.Status != RecognitionNoMatch || !result.Ambiguous {
		t.Errorf("expected ambiguous no_match, got %+v", result)
	}
	if result.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected status 500 to be kept, got %d", result.HTTPStatus)
	}
	if result.Message != "Recognition failed" {
		t.Errorf("expected verbatim message, got %q", result.Message)
	}
}

func TestEnrollFace_Success(t *testing.T) {
	var gotBody enrollRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/enroll_face" || r.Method != http.MethodPost {
			http.Error(w, "unexpected route", http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"✅ Face enrolled for Asha!"}`))
	}))
	defer server.Close()

	outcome, err := newTestClient(t, server.URL, "tok").EnrollFace(context.Background(), "E220160", "Asha", testPayload)
	if err != nil {
		t.Fatalf("EnrollFace failed: %v", err)
	}

	if outcome.Status != EnrollSuccess {
		t.Errorf("expected success, got %s", outcome.Status)
	}
	if outcome.Message != "✅ Face enrolled for Asha!" {
		t.Errorf("expected verbatim message, got %q", outcome.Message)
	}
	if outcome.Err() != nil {
		t.Errorf("expected nil Err for success, got %v", outcome.Err())
	}
	if gotBody.AdmissionNo != "E220160" || gotBody.Name != "Asha" || gotBody.Image != string(testPayload) {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestEnrollFace_Duplicate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"already enrolled message", `{"success":false,"error":"Face already enrolled for E220150"}`},
		{"already belongs message", `{"success":false,"error":"🚫 Face already belongs to:\nRavi\n(E220150)"}`},
		{"explicit code", `{"success":false,"error":"Collision","code":"duplicate_face"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupEnvelopeServer(t, http.StatusBadRequest, tt.body, nil)
			defer server.Close()

			outcome, err := newTestClient(t, server.URL, "").EnrollFace(context.Background(), "E220150", "Ravi", testPayload)
			if err != nil {
				t.Fatalf("EnrollFace failed: %v", err)
			}
			if outcome.Status != EnrollDuplicateFace {
				t.Errorf("expected duplicate_face, got %s", outcome.Status)
			}

			var env response
			json.Unmarshal([]byte(tt.body), &env)
			if outcome.Message != env.Error {
				t.Errorf("expected verbatim message %q, got %q", env.Error, outcome.Message)
			}
		})
	}
}

func TestEnrollFace_CustomMarkers(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadRequest, `{"success":false,"error":"Gesicht bereits registriert"}`, nil)
	defer server.Close()

	c := newTestClient(t, server.URL, "", WithDuplicateMarkers([]string{"bereits registriert"}))
	outcome, err := c.EnrollFace(context.Background(), "E1", "A", testPayload)
	if err != nil {
		t.Fatalf("EnrollFace failed: %v", err)
	}
	if outcome.Status != EnrollDuplicateFace {
		t.Errorf("expected duplicate_face with custom marker, got %s", outcome.Status)
	}
}

func TestEnrollFace_OtherError(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadRequest, `{"success":false,"error":"No face detected"}`, nil)
	defer server.Close()

	outcome, err := newTestClient(t, server.URL, "").EnrollFace(context.Background(), "E1", "A", testPayload)
	if err != nil {
		t.Fatalf("EnrollFace failed: %v", err)
	}
	if outcome.Status != EnrollOtherError || outcome.Kind != KindValidation {
		t.Errorf("expected validation other_error, got %+v", outcome)
	}

	be, ok := AsError(outcome.Err())
	if !ok || be.Error() != "No face detected" {
		t.Errorf("expected Err to carry the verbatim message, got %v", outcome.Err())
	}
}

func TestEnrollFace_ServerErrorJSON(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusInternalServerError, `{"success":false,"error":"Enrollment failed"}`, nil)
	defer server.Close()

	outcome, err := newTestClient(t, server.URL, "").EnrollFace(context.Background(), "E1", "A", testPayload)
	if err != nil {
		t.Fatalf("EnrollFace failed: %v", err)
	}
	if outcome.Kind != KindUnknown || outcome.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected unknown kind with status 500, got %+v", outcome)
	}
}

func TestPost_NonJSONBody(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusBadGateway, `<html>Bad Gateway</html>`, nil)
	defer server.Close()

	_, err := newTestClient(t, server.URL, "").MarkAttendance(context.Background(), "CSE", testPayload)

	be, ok := AsError(err)
	if !ok {
		t.Fatalf("expected backend Error, got %v", err)
	}
	if be.Status != http.StatusBadGateway || be.Kind != KindUnknown {
		t.Errorf("expected unknown kind with status 502, got %+v", be)
	}
	if IsTransport(err) {
		t.Error("expected an HTTP response not to be reported as transport failure")
	}
}

func TestPost_MissingSuccessField(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusOK, `{"message":"ok"}`, nil)
	defer server.Close()

	_, err := newTestClient(t, server.URL, "").EnrollFace(context.Background(), "E1", "A", testPayload)
	if _, ok := AsError(err); !ok {
		t.Errorf("expected backend Error for envelope without success, got %v", err)
	}
}

func TestPost_TransportError(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusOK, `{}`, nil)
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url, "").MarkAttendance(context.Background(), "CSE", testPayload)
	if !IsTransport(err) {
		t.Errorf("expected TransportError, got %v", err)
	}
}

func TestPost_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "", WithTimeout(50*time.Millisecond))
	_, err := c.MarkAttendance(context.Background(), "CSE", testPayload)
	if !IsTransport(err) {
		t.Errorf("expected TransportError on timeout, got %v", err)
	}
}

func TestPost_ExactlyOneRequest(t *testing.T) {
	var hits int32
	server := setupEnvelopeServer(t, http.StatusInternalServerError, `{"success":false,"error":"Server error: boom"}`, &hits)
	defer server.Close()

	c := newTestClient(t, server.URL, "")
	c.MarkAttendance(context.Background(), "CSE", testPayload)
	c.EnrollFace(context.Background(), "E1", "A", testPayload)

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected exactly one request per call, got %d requests for 2 calls", got)
	}
}

func TestAuthorizationHeader_EmptyToken(t *testing.T) {
	var present bool
	var value string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		value = r.Header.Get("Authorization")
		w.Write(loadTestData(t, "stats.json"))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL, "").Stats(context.Background()); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if !present {
		t.Fatal("expected Authorization header to be present with an empty token")
	}
	if strings.TrimSpace(value) != "Bearer" {
		t.Errorf("expected empty bearer value, got %q", value)
	}
}

func TestListStudents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/students/CSE" {
			http.Error(w, `{"msg":"not found"}`, http.StatusNotFound)
			return
		}
		w.Write(loadTestData(t, "students_CSE.json"))
	}))
	defer server.Close()

	students, err := newTestClient(t, server.URL, "tok").ListStudents(context.Background(), "CSE")
	if err != nil {
		t.Fatalf("ListStudents failed: %v", err)
	}

	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %d", len(students))
	}
	if !students[0].FaceEnrolled || students[1].FaceEnrolled {
		t.Errorf("unexpected enrolled flags: %v, %v", students[0].FaceEnrolled, students[1].FaceEnrolled)
	}
	if students[0].Semester != "5" || students[1].Semester != "3" {
		t.Errorf("expected semesters 5 and 3, got %q and %q", students[0].Semester, students[1].Semester)
	}

	_, err = newTestClient(t, server.URL, "tok").ListStudents(context.Background(), "ECE")
	if be, ok := AsError(err); !ok || be.Kind != KindNotFound {
		t.Errorf("expected not_found error, got %v", err)
	}
}

func TestListStudents_Unauthorized(t *testing.T) {
	server := setupEnvelopeServer(t, http.StatusUnauthorized, `{"msg":"Missing Authorization Header"}`, nil)
	defer server.Close()

	_, err := newTestClient(t, server.URL, "").ListStudents(context.Background(), "CSE")
	be, ok := AsError(err)
	if !ok || be.Status != http.StatusUnauthorized {
		t.Errorf("expected 401 backend error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(loadTestData(t, "stats.json"))
	}))
	defer server.Close()

	stats, err := newTestClient(t, server.URL, "").Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 42 || stats.TodayPresent != 17 || stats.TodayDate != "2026-10-18" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTodayAttendance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(loadTestData(t, "today_attendance_CSE.json"))
	}))
	defer server.Close()

	records, err := newTestClient(t, server.URL, "").TodayAttendance(context.Background(), "CSE")
	if err != nil {
		t.Fatalf("TodayAttendance failed: %v", err)
	}
	if len(records) != 1 || records[0].Confidence != 0.93 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestCaptureDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(loadTestData(t, "stats.json"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "captures")
	c := newTestClient(t, server.URL, "", WithCaptureDir(dir))
	if _, err := c.Stats(context.Background()); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read capture dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "stats_200_") {
		t.Errorf("expected one stats capture, got %v", entries)
	}
}
