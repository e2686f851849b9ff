package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Detector runs the face and audio sampling loops for one session.
type Detector struct {
	capture Capture
	th      Thresholds
	emit    func(Signal)
	log     zerolog.Logger
	state   Hysteresis
}

// NewDetector creates a Detector. emit is called from the loop goroutines.
func NewDetector(capture Capture, th Thresholds, emit func(Signal), log zerolog.Logger) *Detector {
	return &Detector{
		capture: capture,
		th:      th,
		emit:    emit,
		log:     log.With().Str("component", "detector").Logger(),
	}
}

// Run samples until ctx is cancelled. A tick that outlasts its period makes
// the ticker drop the missed ticks instead of queueing them.
func (d *Detector) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.loop(ctx, d.th.FacePeriod, d.faceTick)
		return nil
	})
	g.Go(func() error {
		d.loop(ctx, d.th.AudioPeriod, d.audioTick)
		return nil
	})
	return g.Wait()
}

func (d *Detector) loop(ctx context.Context, period time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (d *Detector) faceTick(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, d.th.CallTimeout)
	count, err := d.capture.CountFaces(callCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			d.log.Debug().Err(err).Msg("Face detection failed, skipping tick")
		}
		return
	}

	sig, ok := d.state.ObserveFaces(count, d.th)
	if !ok {
		return
	}
	if sig.WantsEvidence {
		sig.EvidenceImage = d.captureEvidence(ctx)
	}
	d.emit(sig)
}

func (d *Detector) audioTick(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, d.th.CallTimeout)
	level, err := d.capture.Level(callCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			d.log.Debug().Err(err).Msg("Audio level read failed, skipping tick")
		}
		return
	}

	if sig, ok := d.state.ObserveLevel(level, d.th); ok {
		d.emit(sig)
	}
}

// captureEvidence returns "" when no frame could be taken; the signal is
// still emitted without it.
func (d *Detector) captureEvidence(ctx context.Context) string {
	callCtx, cancel := context.WithTimeout(ctx, d.th.CallTimeout)
	defer cancel()

	frame, err := d.capture.CaptureFrame(callCtx)
	if err != nil {
		d.log.Warn().Err(err).Msg("Evidence capture failed")
		return ""
	}
	return frame
}
