// Package agent is the exam-taker side of proctoring: it samples camera and
// microphone, turns raw readings into violation signals, throttles them and
// reports them to the server while the exam countdown runs.
package agent

import "time"

// Thresholds is the single tunable table for every detector constant.
type Thresholds struct {
	FacePeriod  time.Duration
	AudioPeriod time.Duration
	// CallTimeout bounds each capability call so a slow model cannot stall a loop.
	CallTimeout time.Duration

	LookAwayStreak      int
	NoFaceStreak        int
	MultipleRepeatEvery int

	NoiseLevel       float64
	NoiseMinStreak   int
	NoiseRepeatEvery int

	ThrottleWindow time.Duration
	// SubmitTimeout bounds the automatic submit at the deadline.
	SubmitTimeout time.Duration
	// ReportTimeout bounds one event delivery.
	ReportTimeout time.Duration
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FacePeriod:          1500 * time.Millisecond,
		AudioPeriod:         time.Second,
		CallTimeout:         time.Second,
		LookAwayStreak:      1,
		NoFaceStreak:        3,
		MultipleRepeatEvery: 3,
		NoiseLevel:          15,
		NoiseMinStreak:      2,
		NoiseRepeatEvery:    3,
		ThrottleWindow:      3000 * time.Millisecond,
		SubmitTimeout:       15 * time.Second,
		ReportTimeout:       5 * time.Second,
	}
}
