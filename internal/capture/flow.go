package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/attendance-kiosk/internal/backend"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/frame"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

// Errors returned by Flow operations.
var (
	ErrInvalidRequest  = errors.New("invalid capture request")
	ErrAlreadyEnrolled = errors.New("face already enrolled")
	ErrBusy            = errors.New("capture already in progress")
	ErrAckRequired     = errors.New("duplicate warning must be dismissed first")
	ErrInvalidState    = errors.New("action not available in the current state")
	ErrClosed          = errors.New("capture flow closed")
)

// Acquirer hands out camera sessions (camera.Manager).
type Acquirer interface {
	Acquire(ctx context.Context, c camera.Constraints) (*camera.Session, error)
}

// FrameSampler turns a ready session into a raster (frame.Sampler).
type FrameSampler interface {
	Sample(ctx context.Context, src frame.Source) (*image.RGBA, error)
}

// Submitter sends captured faces to the backend (backend.Client).
type Submitter interface {
	EnrollFace(ctx context.Context, admissionNo, name string, image frame.Payload) (backend.EnrollmentOutcome, error)
	MarkAttendance(ctx context.Context, branch string, image frame.Payload) (backend.RecognitionResult, error)
}

// Roster answers the enrolled pre-check and records new enrollments (roster.Roster).
type Roster interface {
	IsEnrolled(admissionNo string) bool
	MarkEnrolled(admissionNo string)
}

// StatsTrigger requests an out-of-band stats refresh (stats.Refresher).
type StatsTrigger interface {
	Trigger()
}

// Acknowledger is implemented by notifiers that track acknowledgment (notify.Board).
type Acknowledger interface {
	Acknowledge() bool
}

// Observer receives every accepted snapshot, in order. It must not call
// back into the flow.
type Observer func(Snapshot)

// Dependencies wires a Flow. Camera, Sampler and Client are required.
type Dependencies struct {
	Camera      Acquirer
	Sampler     FrameSampler
	Client      Submitter
	Roster      Roster
	Notifier    notify.Notifier
	Stats       StatsTrigger
	Clock       Clock
	Logger      *zerolog.Logger
	Constraints camera.Constraints
	Quality     int
	Machine     Machine
	Observers   []Observer
}

type subscriber struct {
	id int
	fn Observer
}

// Flow runs one capture panel. All methods are safe for concurrent use.
type Flow struct {
	id      string
	deps    Dependencies
	machine Machine
	clock   Clock
	log     *zerolog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu            sync.Mutex
	snap          Snapshot
	closed        bool
	session       *camera.Session
	timer         Timer
	attemptCtx    context.Context
	attemptCancel context.CancelFunc
	changed       chan struct{}
	subscribers   []subscriber
	nextSubID     int

	// observeMu keeps observer delivery in transition order.
	observeMu sync.Mutex
}

// NewFlow creates an idle flow.
func NewFlow(deps Dependencies) (*Flow, error) {
	if deps.Camera == nil || deps.Sampler == nil || deps.Client == nil {
		return nil, errors.New("capture flow requires a camera, a sampler and a client")
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Named("capture")
	}
	if deps.Quality == 0 {
		deps.Quality = frame.DefaultQuality
	}
	if deps.Constraints == (camera.Constraints{}) {
		deps.Constraints = camera.Constraints{Width: frame.DefaultWidth, Height: frame.DefaultHeight, Facing: camera.FacingUser}
	}
	machine := NewMachine(deps.Machine.Settle, deps.Machine.NoMatchReset)

	id := uuid.NewString()
	log := deps.Logger.With().Str("flow", id).Logger()
	ctx, stop := context.WithCancel(context.Background())

	f := &Flow{
		id:      id,
		deps:    deps,
		machine: machine,
		clock:   deps.Clock,
		log:     &log,
		ctx:     ctx,
		stop:    stop,
		snap:    Snapshot{FlowID: id, State: StateIdle},
		changed: make(chan struct{}),
	}
	for _, obs := range deps.Observers {
		f.Subscribe(obs)
	}
	return f, nil
}

// ID returns the flow identifier.
func (f *Flow) ID() string {
	return f.id
}

// Snapshot returns the current state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Subscribe registers an observer and returns a function that removes it.
func (f *Flow) Subscribe(obs Observer) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	id := f.nextSubID
	f.subscribers = append(f.subscribers, subscriber{id: id, fn: obs})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subscribers {
			if s.id == id {
				f.subscribers = append(f.subscribers[:i:i], f.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Start begins a capture. Enrollment of a student whose face is already on
// record is refused before the camera is touched.
func (f *Flow) Start(req Request) error {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if f.isClosed() {
		return ErrClosed
	}
	if req.Mode == ModeEnroll && f.deps.Roster != nil && f.deps.Roster.IsEnrolled(req.AdmissionNo) {
		return fmt.Errorf("%w: %s", ErrAlreadyEnrolled, req.AdmissionNo)
	}
	if !f.dispatch(Event{Type: EventStart, Request: req}) {
		return ErrBusy
	}
	return nil
}

// Retry starts a new cycle with the same request after an error or a no-match.
func (f *Flow) Retry() error {
	if f.isClosed() {
		return ErrClosed
	}
	if f.Snapshot().AwaitingAck {
		return ErrAckRequired
	}
	if !f.dispatch(Event{Type: EventRetry}) {
		return ErrInvalidState
	}
	return nil
}

// CaptureAnother leaves a successful capture and starts again with the
// same request, running the enrolled pre-check again.
func (f *Flow) CaptureAnother() error {
	if f.isClosed() {
		return ErrClosed
	}
	if !f.dispatch(Event{Type: EventCaptureAnother}) {
		return ErrInvalidState
	}
	return f.Start(f.Snapshot().Request)
}

// Dismiss acknowledges a duplicate warning, or clears a finished attempt.
func (f *Flow) Dismiss() error {
	if f.isClosed() {
		return ErrClosed
	}
	if !f.dispatch(Event{Type: EventDismiss}) {
		return ErrInvalidState
	}
	return nil
}

// Cancel abandons the current attempt and releases the camera. It reports
// whether there was anything to cancel.
func (f *Flow) Cancel() bool {
	return f.dispatch(Event{Type: EventCancel})
}

// Close cancels any attempt and waits for in-flight work to finish.
func (f *Flow) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.Cancel()
	f.stop()
	f.wg.Wait()
}

// WaitFor blocks until pred holds for the current snapshot or ctx is done.
func (f *Flow) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		f.mu.Lock()
		snap, changed := f.snap, f.changed
		f.mu.Unlock()

		if pred(snap) {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// WaitSettled blocks until the attempt finishes and, for a duplicate, the
// warning has been shown.
func (f *Flow) WaitSettled(ctx context.Context) (Snapshot, error) {
	return f.WaitFor(ctx, func(s Snapshot) bool {
		return s.State == StateSuccess || s.State == StateNoMatch || s.State == StateError || s.State == StateIdle
	})
}

func (f *Flow) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// dispatch applies ev. Resource effects run under the lock so a cancel
// cannot interleave with them; notifications run after it is released.
func (f *Flow) dispatch(ev Event) bool {
	f.mu.Lock()
	prev := f.snap
	next, effects := f.machine.Transition(prev, ev)
	if next.Rev == prev.Rev {
		f.mu.Unlock()
		if ev.fromEffect() {
			f.log.Debug().Str("event", string(ev.Type)).Uint64("attempt", ev.Attempt).Msg("discarded stale event")
		}
		return false
	}

	f.snap = next
	var after []func()
	for _, eff := range effects {
		if fn := f.run(eff); fn != nil {
			after = append(after, fn)
		}
	}
	// Waiters wake only once the in-lock effects have been applied.
	close(f.changed)
	f.changed = make(chan struct{})
	subs := make([]Observer, 0, len(f.subscribers))
	for _, s := range f.subscribers {
		subs = append(subs, s.fn)
	}
	f.observeMu.Lock()
	f.mu.Unlock()

	f.logTransition(prev, next, ev)
	for _, obs := range subs {
		obs(next)
	}
	f.observeMu.Unlock()

	for _, fn := range after {
		fn()
	}
	return true
}

// run executes one effect with f.mu held and returns work to do after
// unlock. Roster updates stay in-lock; they touch only memory.
func (f *Flow) run(eff Effect) func() {
	switch eff.Type {
	case EffectAcquire:
		ctx := f.newAttemptContext()
		f.spawn(func() { f.acquire(ctx, eff.Attempt) })

	case EffectScheduleCapture:
		f.schedule(eff.Delay, Event{Type: EventCaptureTimer, Attempt: eff.Attempt})

	case EffectSampleSubmit:
		ctx, session, req := f.attemptCtx, f.session, f.snap.Request
		f.spawn(func() { f.dispatch(f.sampleAndSubmit(ctx, session, req, eff.Attempt)) })

	case EffectRelease:
		f.releaseSession()

	case EffectScheduleReset:
		f.schedule(eff.Delay, Event{Type: EventResetTimer, Attempt: eff.Attempt})

	case EffectCancelPending:
		f.stopTimer()
		if f.attemptCancel != nil {
			f.attemptCancel()
		}

	case EffectNotifyDuplicate:
		w := *eff.Warning
		return func() {
			if f.deps.Notifier != nil {
				f.deps.Notifier.ShowDuplicate(w)
			}
			f.dispatch(Event{Type: EventDuplicateShown, Attempt: eff.Attempt})
		}

	case EffectAcknowledge:
		return func() {
			if a, ok := f.deps.Notifier.(Acknowledger); ok {
				a.Acknowledge()
			}
		}

	case EffectRefreshStats:
		return func() {
			if f.deps.Stats != nil {
				f.deps.Stats.Trigger()
			}
		}

	case EffectMarkEnrolled:
		// Applied before the snapshot is published so the enrolled
		// pre-check already sees it.
		if f.deps.Roster != nil {
			f.deps.Roster.MarkEnrolled(eff.AdmissionNo)
		}
	}
	return nil
}

func (f *Flow) spawn(fn func()) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
}

// newAttemptContext replaces the context bounding in-flight work.
func (f *Flow) newAttemptContext() context.Context {
	if f.attemptCancel != nil {
		f.attemptCancel()
	}
	f.attemptCtx, f.attemptCancel = context.WithCancel(f.ctx)
	return f.attemptCtx
}

func (f *Flow) schedule(d time.Duration, ev Event) {
	f.stopTimer()
	f.timer = f.clock.AfterFunc(d, func() { f.dispatch(ev) })
}

func (f *Flow) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flow) releaseSession() {
	s := f.session
	f.session = nil
	if err := s.Release(); err != nil {
		f.log.Warn().Err(err).Msg("failed to release camera")
	}
}

// acquire opens the camera and reports readiness. A session that arrives
// after its attempt was abandoned is released at once.
func (f *Flow) acquire(ctx context.Context, attempt uint64) {
	s, err := f.deps.Camera.Acquire(ctx, f.deps.Constraints)
	if err != nil {
		f.dispatch(Event{Type: EventDeviceFailed, Attempt: attempt, Failure: cameraFailure(err)})
		return
	}

	f.mu.Lock()
	if f.snap.Attempt != attempt || f.snap.State != StateStarting {
		f.mu.Unlock()
		s.Release()
		f.log.Debug().Uint64("attempt", attempt).Msg("released camera acquired for abandoned attempt")
		return
	}
	f.session = s
	f.mu.Unlock()

	w, h := s.Resolution()
	f.log.Debug().Str("session", s.ID()).Int("width", w).Int("height", h).Msg("camera acquired")

	select {
	case <-s.Ready():
		f.dispatch(Event{Type: EventDeviceReady, Attempt: attempt})
	case <-ctx.Done():
	}
}

// sampleAndSubmit runs one Processing step and returns the event that ends it.
func (f *Flow) sampleAndSubmit(ctx context.Context, session *camera.Session, req Request, attempt uint64) Event {
	failed := func(fl *Failure) Event {
		return Event{Type: EventFailed, Attempt: attempt, Failure: fl}
	}

	if session == nil {
		return failed(&Failure{Kind: FailureCapture, Message: "Camera not ready"})
	}

	raster, err := f.deps.Sampler.Sample(ctx, session)
	if err != nil {
		return failed(&Failure{Kind: FailureCapture, Message: fmt.Sprintf("Failed to capture frame: %v", err)})
	}

	payload, err := frame.Encode(raster, f.deps.Quality)
	if err != nil {
		return failed(&Failure{Kind: FailureCapture, Message: fmt.Sprintf("Failed to encode frame: %v", err)})
	}

	if req.Mode == ModeEnroll {
		return f.submitEnrollment(ctx, req, payload, attempt)
	}
	return f.submitRecognition(ctx, req, payload, attempt)
}

func (f *Flow) submitEnrollment(ctx context.Context, req Request, payload frame.Payload, attempt uint64) Event {
	outcome, err := f.deps.Client.EnrollFace(ctx, req.AdmissionNo, req.Name, payload)
	if err != nil {
		return Event{Type: EventFailed, Attempt: attempt, Failure: submitFailure(err)}
	}

	switch outcome.Status {
	case backend.EnrollSuccess:
		return Event{Type: EventSucceeded, Attempt: attempt, Outcome: &Outcome{
			Message:     outcome.Message,
			Student:     req.Name,
			AdmissionNo: req.AdmissionNo,
		}}
	case backend.EnrollDuplicateFace:
		return Event{Type: EventDuplicate, Attempt: attempt, Warning: duplicateWarning(req, outcome.Message, f.clock.Now())}
	default:
		return Event{Type: EventFailed, Attempt: attempt, Failure: &Failure{
			Kind:    FailureBackend,
			Reason:  reasonFor(outcome.Kind),
			Message: outcome.Message,
		}}
	}
}

func (f *Flow) submitRecognition(ctx context.Context, req Request, payload frame.Payload, attempt uint64) Event {
	result, err := f.deps.Client.MarkAttendance(ctx, req.Branch, payload)
	if err != nil {
		return Event{Type: EventFailed, Attempt: attempt, Failure: submitFailure(err)}
	}

	switch result.Status {
	case backend.RecognitionMatched:
		return Event{Type: EventSucceeded, Attempt: attempt, Outcome: &Outcome{
			Message:     result.Message,
			Student:     result.Student,
			AdmissionNo: result.AdmissionNo,
			Confidence:  result.Confidence,
			Session:     result.Session,
		}}
	case backend.RecognitionNoMatch:
		return Event{Type: EventNoMatch, Attempt: attempt, Outcome: &Outcome{
			Message:   result.Message,
			Ambiguous: result.Ambiguous,
		}}
	default:
		return Event{Type: EventFailed, Attempt: attempt, Failure: &Failure{
			Kind:    FailureBackend,
			Reason:  reasonFor(result.Kind),
			Message: result.Message,
		}}
	}
}

func (f *Flow) logTransition(prev, next Snapshot, ev Event) {
	level := zerolog.DebugLevel
	if next.Failure != nil && next.State != prev.State {
		level = zerolog.WarnLevel
	}

	e := f.log.WithLevel(level).
		Str("event", string(ev.Type)).
		Str("from", string(prev.State)).
		Str("to", string(next.State)).
		Uint64("attempt", next.Attempt)
	if next.Failure != nil {
		e = e.Str("failure", string(next.Failure.Kind)).Str("reason", next.Failure.Reason).Str("message", next.Failure.Message)
	}
	e.Msg("capture transition")
}

func cameraFailure(err error) *Failure {
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		return &Failure{Kind: FailureCamera, Reason: ReasonPermissionDenied, Message: "Camera access denied - allow camera permission"}
	case errors.Is(err, camera.ErrSessionActive):
		return &Failure{Kind: FailureCamera, Reason: ReasonDeviceUnavailable, Message: "Camera is in use by another capture"}
	default:
		return &Failure{Kind: FailureCamera, Reason: ReasonDeviceUnavailable, Message: fmt.Sprintf("Camera unavailable: %v", err)}
	}
}

func submitFailure(err error) *Failure {
	if backend.IsTransport(err) {
		return &Failure{Kind: FailureNetwork, Message: err.Error()}
	}
	if be, ok := backend.AsError(err); ok {
		return &Failure{Kind: FailureBackend, Reason: reasonFor(be.Kind), Message: be.Error()}
	}
	return &Failure{Kind: FailureBackend, Reason: ReasonUnknown, Message: err.Error()}
}

func reasonFor(kind backend.ErrorKind) string {
	switch kind {
	case backend.KindValidation:
		return ReasonValidation
	case backend.KindDuplicateFace:
		return ReasonDuplicateFace
	case backend.KindNotFound:
		return ReasonNotFound
	default:
		return ReasonUnknown
	}
}
