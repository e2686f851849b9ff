package agent

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestThrottle(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		gap   time.Duration
		emits int
	}{
		{"500ms apart", 500 * time.Millisecond, 1},
		{"2999ms apart", 2999 * time.Millisecond, 1},
		{"exactly the window", 3000 * time.Millisecond, 2},
		{"3100ms apart", 3100 * time.Millisecond, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThrottle(3000 * time.Millisecond)
			n := 0
			for _, at := range []time.Time{t0, t0.Add(tt.gap)} {
				if th.ShouldEmit(model.EventTabSwitch, at) {
					n++
				}
			}
			assert.Equal(t, tt.emits, n)
		})
	}
}

func TestThrottle_TypesAreIndependent(t *testing.T) {
	t0 := time.Now()
	th := NewThrottle(3 * time.Second)

	assert.True(t, th.ShouldEmit(model.EventTabSwitch, t0))
	assert.True(t, th.ShouldEmit(model.EventFullscreenExit, t0))
	assert.False(t, th.ShouldEmit(model.EventTabSwitch, t0.Add(time.Second)))
}

func TestThrottle_SuppressedCallDoesNotExtendWindow(t *testing.T) {
	t0 := time.Now()
	th := NewThrottle(3 * time.Second)

	assert.True(t, th.ShouldEmit(model.EventMicNoise, t0))
	assert.False(t, th.ShouldEmit(model.EventMicNoise, t0.Add(2*time.Second)))
	assert.True(t, th.ShouldEmit(model.EventMicNoise, t0.Add(3*time.Second)))
}
