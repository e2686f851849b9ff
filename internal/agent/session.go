package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// ErrSessionStarted is returned by a second call to Run.
var ErrSessionStarted = errors.New("agent: session already started")

// TabSwitchKind says how focus was lost.
type TabSwitchKind string

const (
	TabHidden     TabSwitchKind = "visibility"
	TabWindowBlur TabSwitchKind = "window_blur"
)

// Submitter finalizes the attempt on the server.
type Submitter interface {
	Submit(ctx context.Context) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context) error

func (f SubmitFunc) Submit(ctx context.Context) error { return f(ctx) }

// Session proctors one exam attempt from the taker's side: it holds the
// capture devices, runs the detector, reports signals and submits when the
// countdown ends or the taker finishes early.
type Session struct {
	examID   uuid.UUID
	open     CaptureOpener
	sink     EventSink
	submit   Submitter
	th       Thresholds
	throttle *Throttle
	log      zerolog.Logger
	now      func() time.Time

	onSignal func(Signal)

	finish     chan struct{}
	finishOnce sync.Once

	mu        sync.Mutex
	state     State
	proctored bool
	inflight  sync.WaitGroup
}

// NewSession creates an idle Session.
func NewSession(examID uuid.UUID, open CaptureOpener, sink EventSink, submit Submitter, th Thresholds, log zerolog.Logger) *Session {
	return &Session{
		examID:   examID,
		open:     open,
		sink:     sink,
		submit:   submit,
		th:       th,
		throttle: NewThrottle(th.ThrottleWindow),
		log:      log.With().Str("component", "proctor_session").Str("exam_id", examID.String()).Logger(),
		now:      time.Now,
		finish:   make(chan struct{}),
		state:    StateIdle,
	}
}

// OnSignal registers the presentation callback. It receives every signal,
// including soft ones that are never reported. Call before Run.
//
// fn is called concurrently by both detector loops and by any goroutine
// calling TabSwitch or FullscreenExit, so it must be safe for concurrent use.
// A slow fn delays the detector tick that produced the signal.
func (s *Session) OnSignal(fn func(Signal)) {
	s.onSignal = fn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Proctored reports whether capture devices were acquired.
func (s *Session) Proctored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proctored
}

// Finish asks a running session to submit now.
func (s *Session) Finish() {
	s.finishOnce.Do(func() { close(s.finish) })
}

// TabSwitch records that the exam lost focus.
func (s *Session) TabSwitch(kind TabSwitchKind) {
	s.handle(Signal{
		Type:     model.EventTabSwitch,
		Metadata: map[string]any{"type": string(kind), "timestamp": s.now().UnixMilli()},
	})
}

// FullscreenExit records that the exam left fullscreen.
func (s *Session) FullscreenExit() {
	s.handle(Signal{
		Type:     model.EventFullscreenExit,
		Metadata: map[string]any{"timestamp": s.now().UnixMilli()},
	})
}

// Run proctors until the deadline, a Finish call or ctx cancellation, and
// returns the terminal state. Capture failure leaves the exam running without
// proctoring. The devices are released on every path and a failed submit is
// not retried.
func (s *Session) Run(ctx context.Context, deadline time.Time) (State, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return s.state, ErrSessionStarted
	}
	s.state = StateRunning
	s.mu.Unlock()

	detectorDone := make(chan struct{})
	detCtx, stopDetector := context.WithCancel(ctx)
	defer stopDetector()

	capture, err := s.open(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Proctoring unavailable, exam continues without capture")
		close(detectorDone)
	} else {
		s.mu.Lock()
		s.proctored = true
		s.mu.Unlock()
		defer func() {
			if err := capture.Close(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to release capture devices")
			}
		}()

		detector := NewDetector(capture, s.th, s.handle, s.log)
		go func() {
			defer close(detectorDone)
			_ = detector.Run(detCtx)
		}()
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var reason string
	select {
	case <-ctx.Done():
	case <-timer.C:
		reason = "deadline"
	case <-s.finish:
		reason = "finished"
	}

	stopDetector()
	<-detectorDone

	final, runErr := StateCancelled, ctx.Err()
	if reason != "" {
		s.setState(StateSubmitting)
		final, runErr = s.doSubmit(ctx, reason)
	}

	s.setState(final)
	s.inflight.Wait()

	s.log.Info().Str("state", string(final)).Msg("Proctoring session ended")
	return final, runErr
}

func (s *Session) doSubmit(ctx context.Context, reason string) (State, error) {
	submitCtx, cancel := context.WithTimeout(ctx, s.th.SubmitTimeout)
	defer cancel()

	if err := s.submit.Submit(submitCtx); err != nil {
		s.log.Error().Err(err).Str("reason", reason).Msg("Submit failed")
		return StateFailed, fmt.Errorf("submit: %w", err)
	}
	s.log.Info().Str("reason", reason).Msg("Attempt submitted")
	return StateSubmitted, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// handle presents a signal and, when it is reportable and not throttled,
// delivers it in the background.
func (s *Session) handle(sig Signal) {
	if s.State() != StateRunning {
		return
	}
	if s.onSignal != nil {
		s.onSignal(sig)
	}
	if !sig.Reportable() || !s.throttle.ShouldEmit(sig.Type, s.now()) {
		return
	}

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	req := model.LogProctorEventRequest{
		ExamID:        s.examID,
		EventType:     sig.Type,
		Metadata:      sig.Metadata,
		EvidenceImage: sig.EvidenceImage,
	}
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.th.ReportTimeout)
		defer cancel()

		if err := s.sink.Send(ctx, req); err != nil {
			s.log.Warn().Err(err).Str("event_type", string(req.EventType)).Msg("Proctor event dropped")
		}
	}()
}
