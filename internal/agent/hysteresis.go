package agent

import (
	"math"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// EventLookAway is a soft signal shown to the exam taker only. It is outside
// the server's event enumeration and never leaves the client.
const EventLookAway model.EventType = "LOOK_AWAY"

// Signal is one detector decision.
type Signal struct {
	Type     model.EventType
	Metadata map[string]any
	// WantsEvidence asks the detector to attach a captured frame.
	WantsEvidence bool
	EvidenceImage string
}

// Reportable reports whether the signal belongs on the wire.
func (s Signal) Reportable() bool {
	return s.Type.Valid()
}

// Hysteresis holds the consecutive-observation counters of one session.
// The face loop owns MissingStreak and MultipleStreak, the audio loop owns
// NoiseStreak.
type Hysteresis struct {
	MissingStreak  int
	MultipleStreak int
	NoiseStreak    int
}

// ObserveFaces advances the face counters by one detection result.
func (h *Hysteresis) ObserveFaces(count int, th Thresholds) (Signal, bool) {
	switch {
	case count == 0:
		h.MissingStreak++
		h.MultipleStreak = 0
		streak := h.MissingStreak
		meta := map[string]any{"consecutiveCount": streak}

		if streak >= th.NoFaceStreak {
			return Signal{Type: model.EventNoFace, Metadata: meta, WantsEvidence: streak == th.NoFaceStreak}, true
		}
		if streak == th.LookAwayStreak {
			return Signal{Type: EventLookAway, Metadata: meta}, true
		}
		return Signal{}, false

	case count > 1:
		h.MultipleStreak++
		h.MissingStreak = 0
		streak := h.MultipleStreak
		meta := map[string]any{"count": count}

		if streak == 1 {
			return Signal{Type: model.EventMultipleFaces, Metadata: meta, WantsEvidence: true}, true
		}
		if th.MultipleRepeatEvery > 0 && streak%th.MultipleRepeatEvery == 0 {
			return Signal{Type: model.EventMultipleFaces, Metadata: meta}, true
		}
		return Signal{}, false

	default:
		h.MissingStreak = 0
		h.MultipleStreak = 0
		return Signal{}, false
	}
}

// ObserveLevel advances the noise counter by one microphone reading.
func (h *Hysteresis) ObserveLevel(level float64, th Thresholds) (Signal, bool) {
	if level <= th.NoiseLevel {
		h.NoiseStreak = 0
		return Signal{}, false
	}

	h.NoiseStreak++
	streak := h.NoiseStreak
	fire := streak == th.NoiseMinStreak ||
		(streak > th.NoiseMinStreak && th.NoiseRepeatEvery > 0 && streak%th.NoiseRepeatEvery == 0)
	if !fire {
		return Signal{}, false
	}

	return Signal{
		Type: model.EventMicNoise,
		Metadata: map[string]any{
			"volume":   int(math.Round(level)),
			"duration": streak,
		},
	}, true
}
