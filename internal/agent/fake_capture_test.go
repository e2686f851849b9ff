package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// fakeCapture replays scripted readings, then reports a clean, quiet frame.
type fakeCapture struct {
	mu       sync.Mutex
	faces    []int
	faceErrs int
	levels   []float64
	frames   atomic.Int32
	closed   atomic.Int32
}

func (f *fakeCapture) CountFaces(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faceErrs > 0 {
		f.faceErrs--
		return 0, errors.New("model not ready")
	}
	if len(f.faces) == 0 {
		return 1, nil
	}
	n := f.faces[0]
	f.faces = f.faces[1:]
	return n, nil
}

func (f *fakeCapture) Level(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.levels) == 0 {
		return 0, nil
	}
	l := f.levels[0]
	f.levels = f.levels[1:]
	return l, nil
}

func (f *fakeCapture) CaptureFrame(context.Context) (string, error) {
	f.frames.Add(1)
	return "data:image/jpeg;base64,AAAA", nil
}

func (f *fakeCapture) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeCapture) drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.faces) == 0 && len(f.levels) == 0 && f.faceErrs == 0
}

// recordingSink stores every delivered event.
type recordingSink struct {
	mu   sync.Mutex
	reqs []model.LogProctorEventRequest
	err  error
}

func (s *recordingSink) Send(_ context.Context, req model.LogProctorEventRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.err
}

func (s *recordingSink) types() []model.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventType, 0, len(s.reqs))
	for _, r := range s.reqs {
		out = append(out, r.EventType)
	}
	return out
}
