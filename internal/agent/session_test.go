package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSubmit struct {
	calls atomic.Int32
	err   error
}

func (c *countingSubmit) Submit(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func openWith(c *fakeCapture) CaptureOpener {
	return func(context.Context) (Capture, error) { return c, nil }
}

func TestSession_AutoSubmitAtDeadline(t *testing.T) {
	capture := &fakeCapture{faces: []int{0, 0, 0}}
	sink := &recordingSink{}
	submit := &countingSubmit{}
	s := NewSession(uuid.New(), openWith(capture), sink, submit, fastThresholds(), zerolog.Nop())

	var presented atomic.Int32
	s.OnSignal(func(Signal) { presented.Add(1) })

	state, err := s.Run(context.Background(), time.Now().Add(100*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, state)
	assert.Equal(t, StateSubmitted, s.State())
	assert.True(t, s.Proctored())
	assert.EqualValues(t, 1, submit.calls.Load())
	assert.EqualValues(t, 1, capture.closed.Load())

	// LOOK_AWAY is presented but never delivered; NO_FACE is delivered once.
	assert.EqualValues(t, 2, presented.Load())
	assert.Equal(t, []model.EventType{model.EventNoFace}, sink.types())
	assert.NotEmpty(t, sink.reqs[0].EvidenceImage)
}

func TestSession_FailedSubmitIsTerminal(t *testing.T) {
	capture := &fakeCapture{}
	submit := &countingSubmit{err: errors.New("503")}
	s := NewSession(uuid.New(), openWith(capture), &recordingSink{}, submit, fastThresholds(), zerolog.Nop())

	state, err := s.Run(context.Background(), time.Now().Add(10*time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.EqualValues(t, 1, submit.calls.Load(), "no retry")
	assert.EqualValues(t, 1, capture.closed.Load())
}

func TestSession_CancelReleasesWithoutSubmit(t *testing.T) {
	capture := &fakeCapture{}
	submit := &countingSubmit{}
	s := NewSession(uuid.New(), openWith(capture), &recordingSink{}, submit, fastThresholds(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	state, err := s.Run(ctx, time.Now().Add(time.Hour))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateCancelled, state)
	assert.Zero(t, submit.calls.Load())
	assert.EqualValues(t, 1, capture.closed.Load())
}

func TestSession_FinishSubmitsEarly(t *testing.T) {
	capture := &fakeCapture{}
	submit := &countingSubmit{}
	s := NewSession(uuid.New(), openWith(capture), &recordingSink{}, submit, fastThresholds(), zerolog.Nop())

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Finish()
		s.Finish()
	}()

	state, err := s.Run(context.Background(), time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, state)
	assert.EqualValues(t, 1, submit.calls.Load())
	assert.EqualValues(t, 1, capture.closed.Load())
}

func TestSession_CaptureUnavailableStillSubmits(t *testing.T) {
	submit := &countingSubmit{}
	open := func(context.Context) (Capture, error) { return nil, errors.New("permission denied") }
	s := NewSession(uuid.New(), open, &recordingSink{}, submit, fastThresholds(), zerolog.Nop())

	state, err := s.Run(context.Background(), time.Now().Add(10*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, state)
	assert.False(t, s.Proctored())
}

func TestSession_DOMSignalsAreThrottled(t *testing.T) {
	sink := &recordingSink{err: errors.New("offline")}
	s := NewSession(uuid.New(), openWith(&fakeCapture{}), sink, &countingSubmit{}, fastThresholds(), zerolog.Nop())

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	go func() {
		for s.State() != StateRunning {
			time.Sleep(time.Millisecond)
		}
		s.TabSwitch(TabHidden)
		now = now.Add(500 * time.Millisecond)
		s.TabSwitch(TabWindowBlur)
		s.FullscreenExit()
		now = now.Add(3100 * time.Millisecond)
		s.TabSwitch(TabWindowBlur)
		s.Finish()
	}()

	state, err := s.Run(context.Background(), time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, state)
	assert.ElementsMatch(t, []model.EventType{model.EventTabSwitch, model.EventFullscreenExit, model.EventTabSwitch}, sink.types())

	var kinds []any
	for _, r := range sink.reqs {
		if r.EventType == model.EventTabSwitch {
			kinds = append(kinds, r.Metadata["type"])
		}
	}
	assert.ElementsMatch(t, []any{"visibility", "window_blur"}, kinds)
}

func TestSession_OnSignalReceivesConcurrentSources(t *testing.T) {
	faces := make([]int, 40)
	levels := make([]float64, 40)
	for i := range levels {
		levels[i] = 80
	}
	capture := &fakeCapture{faces: faces, levels: levels}
	s := NewSession(uuid.New(), openWith(capture), &recordingSink{}, &countingSubmit{}, fastThresholds(), zerolog.Nop())

	var (
		mu   sync.Mutex
		seen = make(map[model.EventType]int)
	)
	s.OnSignal(func(sig Signal) {
		mu.Lock()
		seen[sig.Type]++
		mu.Unlock()
	})

	const callers = 4
	go func() {
		for s.State() != StateRunning {
			time.Sleep(time.Millisecond)
		}
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					s.TabSwitch(TabHidden)
					s.FullscreenExit()
				}
			}()
		}
		wg.Wait()
		for !capture.drained() {
			time.Sleep(time.Millisecond)
		}
		s.Finish()
	}()

	state, err := s.Run(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, state)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, callers*10, seen[model.EventTabSwitch])
	assert.Equal(t, callers*10, seen[model.EventFullscreenExit])
	assert.Positive(t, seen[model.EventNoFace])
	assert.Positive(t, seen[model.EventMicNoise])
}

func TestSession_SignalsAfterEndAreIgnored(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(uuid.New(), openWith(&fakeCapture{}), sink, &countingSubmit{}, fastThresholds(), zerolog.Nop())

	_, err := s.Run(context.Background(), time.Now())
	require.NoError(t, err)

	s.TabSwitch(TabHidden)
	assert.Empty(t, sink.types())

	_, err = s.Run(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrSessionStarted)
}
