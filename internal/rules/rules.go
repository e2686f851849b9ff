// Package rules holds the process-wide suspicion weight per event type.
package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stemsi/exstem-proctor/internal/model"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "proctor_rules.schema.json"

var ruleSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("rules: add schema: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// Weights maps event type to a non-negative suspicion weight. The zero value
// weighs everything 0. Weights is immutable after construction.
type Weights struct {
	m map[model.EventType]int
}

// Default returns the built-in table used when no external table can be read.
func Default() Weights {
	return Weights{m: map[model.EventType]int{
		model.EventTabSwitch:      10,
		model.EventFullscreenExit: 10,
		model.EventNoFace:         20,
		model.EventMultipleFaces:  30,
		model.EventMicNoise:       5,
	}}
}

// Weight returns the weight for t, 0 when t is unknown.
func (w Weights) Weight(t model.EventType) int {
	return w.m[t]
}

// Map returns a copy of the table.
func (w Weights) Map() map[model.EventType]int {
	out := make(map[model.EventType]int, len(w.m))
	for k, v := range w.m {
		out[k] = v
	}
	return out
}

// Parse validates data against the rule schema and decodes it.
func Parse(data []byte) (Weights, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Weights{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := ruleSchema.Validate(doc); err != nil {
		return Weights{}, fmt.Errorf("validate rules: %w", err)
	}

	var raw map[model.EventType]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return Weights{}, fmt.Errorf("decode rules: %w", err)
	}
	return Weights{m: raw}, nil
}

// Loader reads the external table at most once per process. Concurrent first
// callers block on the same in-flight read and receive the same Weights.
type Loader struct {
	path     string
	log      zerolog.Logger
	readFile func(string) ([]byte, error)
	once     func() Weights
}

// NewLoader creates a Loader for the JSON file at path.
func NewLoader(path string, log zerolog.Logger) *Loader {
	l := &Loader{
		path:     path,
		log:      log.With().Str("component", "rules").Logger(),
		readFile: os.ReadFile,
	}
	l.once = sync.OnceValue(l.read)
	return l
}

// Load returns the memoized weight table.
func (l *Loader) Load() Weights {
	return l.once()
}

func (l *Loader) read() Weights {
	data, err := l.readFile(l.path)
	if err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("Proctor rules unavailable, using fallback rules")
		return Default()
	}

	w, err := Parse(data)
	if err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("Proctor rules malformed, using fallback rules")
		return Default()
	}

	l.log.Info().Str("path", l.path).Int("rules", len(w.m)).Msg("Proctor rules loaded")
	return w
}
