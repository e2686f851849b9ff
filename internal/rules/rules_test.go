package rules

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	w := Default()

	assert.Equal(t, 10, w.Weight(model.EventTabSwitch))
	assert.Equal(t, 10, w.Weight(model.EventFullscreenExit))
	assert.Equal(t, 20, w.Weight(model.EventNoFace))
	assert.Equal(t, 30, w.Weight(model.EventMultipleFaces))
	assert.Equal(t, 5, w.Weight(model.EventMicNoise))
	assert.Zero(t, w.Weight("LOOK_AWAY"))
}

func TestMapIsACopy(t *testing.T) {
	w := Default()
	m := w.Map()
	m[model.EventNoFace] = 999

	assert.Equal(t, 20, w.Weight(model.EventNoFace))
}

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "full table", input: `{"TAB_SWITCH":1,"FULLSCREEN_EXIT":2,"NO_FACE":3,"MULTIPLE_FACES":4,"MIC_NOISE":0}`},
		{name: "partial table", input: `{"NO_FACE":7}`},
		{name: "negative weight", input: `{"NO_FACE":-1}`, wantErr: true},
		{name: "fractional weight", input: `{"NO_FACE":1.5}`, wantErr: true},
		{name: "unknown event type", input: `{"HACK":10}`, wantErr: true},
		{name: "not an object", input: `[1,2,3]`, wantErr: true},
		{name: "syntax error", input: `{"NO_FACE":`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParsePartialTableWeighsMissingAsZero(t *testing.T) {
	w, err := Parse([]byte(`{"NO_FACE":7}`))
	require.NoError(t, err)

	assert.Equal(t, 7, w.Weight(model.EventNoFace))
	assert.Zero(t, w.Weight(model.EventMicNoise))
}

func TestLoaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"NO_FACE":40,"MIC_NOISE":1}`), 0o600))

	w := NewLoader(path, zerolog.Nop()).Load()

	assert.Equal(t, 40, w.Weight(model.EventNoFace))
	assert.Equal(t, 1, w.Weight(model.EventMicNoise))
}

func TestLoaderFallsBackWhenMissing(t *testing.T) {
	w := NewLoader(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop()).Load()

	assert.Equal(t, Default().Map(), w.Map())
}

func TestLoaderFallsBackWhenMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"NO_FACE":"lots"}`), 0o600))

	w := NewLoader(path, zerolog.Nop()).Load()

	assert.Equal(t, Default().Map(), w.Map())
}

func TestLoaderSharesSingleInFlightRead(t *testing.T) {
	var reads atomic.Int32
	release := make(chan struct{})

	l := NewLoader("ignored", zerolog.Nop())
	l.readFile = func(string) ([]byte, error) {
		reads.Add(1)
		<-release
		return []byte(`{"NO_FACE":11}`), nil
	}

	const callers = 32
	results := make([]Weights, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Load()
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), reads.Load())
	for _, w := range results {
		assert.Equal(t, 11, w.Weight(model.EventNoFace))
	}
}

func TestLoaderDoesNotRetryAfterFailure(t *testing.T) {
	var reads atomic.Int32
	l := NewLoader("ignored", zerolog.Nop())
	l.readFile = func(string) ([]byte, error) {
		reads.Add(1)
		return nil, errors.New("disk gone")
	}

	l.Load()
	l.Load()

	assert.Equal(t, int32(1), reads.Load())
}
