// Package capture drives acquisition of a camera stream and produces the two
// still frames a proof submission needs: an activity shot taken with the
// outward-facing camera, then a verifying selfie taken with the inward-facing
// camera.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Errors reported by a capture session.
var (
	// ErrCameraUnavailable wraps camera acquisition failures.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoStream is returned when a frame is requested before a stream was
	// acquired for the current step.
	ErrNoStream = errors.New("no active camera stream")
	// ErrClosed is returned when an operation runs against a session that has
	// already reached a terminal step.
	ErrClosed = errors.New("capture session closed")
)

// Facing selects which device camera to acquire.
type Facing int

// Camera facings.
const (
	// FacingBack is the outward camera used for the activity shot.
	FacingBack Facing = iota
	// FacingFront is the inward camera used for the selfie.
	FacingFront
)

// Stream is a live camera stream. Still freezes the current video frame into
// an encoded image; Close releases the device.
type Stream interface {
	Still(ctx context.Context) ([]byte, error)
	Close() error
}

// Camera acquires device streams. Implementations live outside this package;
// acquisition failure must be reported as an error, not retried.
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Step is the session's current position in the capture flow.
type Step int

// Capture steps. StepSubmitted and StepAborted are terminal.
const (
	StepActivity Step = iota
	StepSelfie
	StepReview
	StepSubmitted
	StepAborted
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepActivity:
		return "activity"
	case StepSelfie:
		return "selfie"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	case StepAborted:
		return "aborted"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) terminal() bool {
	return s == StepSubmitted || s == StepAborted
}

// facing returns the camera facing a capture step requires.
func (s Step) facing() Facing {
	if s == StepSelfie {
		return FacingFront
	}
	return FacingBack
}

// Session is the media capture state machine. It holds at most one live
// camera stream at any time; every transition that does not immediately
// re-acquire releases the previous stream first. Safe for concurrent use.
type Session struct {
	cam Camera

	mu       sync.Mutex
	step     Step
	stream   Stream
	activity []byte
	selfie   []byte
}

// NewSession creates a session positioned at the activity step with no
// stream. Call Start to acquire the outward camera.
func NewSession(cam Camera) *Session {
	return &Session{cam: cam, step: StepActivity}
}

// Step returns the session's current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Start acquires the camera stream for the current step. On acquisition
// failure the session stays in its current step without a stream; the caller
// may retry or close. If the session is closed while acquisition is pending,
// the freshly opened stream is released before Start returns.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.step.terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.step == StepReview {
		s.mu.Unlock()
		return fmt.Errorf("cannot start camera in review step")
	}
	facing := s.step.facing()
	s.mu.Unlock()

	// Acquisition crosses the system boundary; do not hold the lock so Close
	// stays callable while it is pending.
	stream, err := s.cam.Open(ctx, facing)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step.terminal() {
		stream.Close()
		return ErrClosed
	}
	if s.stream != nil {
		s.stream.Close()
	}
	s.stream = stream
	return nil
}

// Capture freezes the current video frame, stores it for the current step and
// advances: activity -> selfie (acquiring the inward camera), selfie ->
// review (releasing the stream, no further acquisition is needed). Valid only
// in the activity and selfie steps.
//
// When the inward camera cannot be acquired for the selfie step, the captured
// activity frame is kept and the session still advances; the caller retries
// with Start.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	if s.step.terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.step != StepActivity && s.step != StepSelfie {
		step := s.step
		s.mu.Unlock()
		return fmt.Errorf("cannot capture in %s step", step)
	}
	stream := s.stream
	if stream == nil {
		s.mu.Unlock()
		return ErrNoStream
	}
	s.mu.Unlock()

	frame, err := stream.Still(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture frame: %w", err)
	}

	s.mu.Lock()
	if s.step.terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	switch s.step {
	case StepActivity:
		s.activity = frame
		s.step = StepSelfie
		s.releaseLocked()
		s.mu.Unlock()
		return s.Start(ctx)
	case StepSelfie:
		s.selfie = frame
		s.step = StepReview
		s.releaseLocked()
		s.mu.Unlock()
		return nil
	default:
		s.mu.Unlock()
		return fmt.Errorf("cannot capture in %s step", s.step)
	}
}

// Retake discards both captured frames and returns to the activity step,
// re-acquiring the outward camera. Valid only in the review step.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.step.terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.step != StepReview {
		step := s.step
		s.mu.Unlock()
		return fmt.Errorf("cannot retake in %s step", step)
	}
	s.activity = nil
	s.selfie = nil
	s.step = StepActivity
	s.releaseLocked()
	s.mu.Unlock()

	return s.Start(ctx)
}

// Submit returns the two captured stills in fixed order (activity, selfie)
// and moves the session to the terminal submitted step. Valid only in the
// review step.
func (s *Session) Submit() (activity, selfie []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step.terminal() {
		return nil, nil, ErrClosed
	}
	if s.step != StepReview {
		return nil, nil, fmt.Errorf("cannot submit in %s step", s.step)
	}
	activity, selfie = s.activity, s.selfie
	s.step = StepSubmitted
	s.releaseLocked()
	return activity, selfie, nil
}

// Close aborts the session from any non-terminal step, releasing any held
// stream. Closing an already terminal session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step.terminal() {
		return nil
	}
	s.step = StepAborted
	s.activity = nil
	s.selfie = nil
	s.releaseLocked()
	return nil
}

// releaseLocked closes the held stream, if any. Callers hold s.mu.
func (s *Session) releaseLocked() {
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}
