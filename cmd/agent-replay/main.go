package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/agent"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// agent-replay runs a proctoring session against a live server, feeding the
// detector from a recorded script instead of a camera and microphone.
func main() {
	var (
		server     = flag.String("server", "http://localhost:8080", "API base URL")
		token      = flag.String("token", "", "Bearer token of the exam taker")
		examFlag   = flag.String("exam", "", "Exam ID")
		scriptPath = flag.String("script", "", "JSON file with {\"faces\":[...],\"levels\":[...]} readings")
		format     = flag.String("log-format", "pretty", "pretty or json")
	)
	flag.Parse()

	log := logger.New(os.Stderr, *format)

	examID, err := uuid.Parse(*examFlag)
	if err != nil || *token == "" || *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: agent-replay -token <jwt> -exam <uuid> -script <file> [-server URL]")
		os.Exit(2)
	}

	script, err := loadScript(*scriptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read script")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := &apiClient{base: strings.TrimRight(*server, "/"), token: *token, http: &http.Client{Timeout: 10 * time.Second}}

	// ─── Start Attempt ─────────────────────────────────────────────────
	var paper model.ExamPaper
	if err := api.call(ctx, http.MethodGet, "/api/v1/exams/"+examID.String(), nil, &paper); err != nil {
		log.Fatal().Err(err).Msg("Failed to load exam")
	}
	var attempt model.ExamAttempt
	if err := api.call(ctx, http.MethodPost, "/api/v1/attempt/start", model.StartAttemptRequest{ExamID: examID}, &attempt); err != nil {
		log.Fatal().Err(err).Msg("Failed to start attempt")
	}
	deadline := attempt.StartTime.Add(time.Duration(paper.Exam.DurationMinutes) * time.Minute)

	log.Info().
		Str("attempt_id", attempt.ID.String()).
		Time("deadline", deadline).
		Msg("Attempt started")

	// ─── Run Session ───────────────────────────────────────────────────
	th := agent.DefaultThresholds()
	submit := agent.SubmitFunc(func(ctx context.Context) error {
		return api.call(ctx, http.MethodPost, "/api/v1/attempt/submit", model.SubmitAttemptRequest{ExamID: examID}, nil)
	})
	open := func(context.Context) (agent.Capture, error) { return script, nil }

	session := agent.NewSession(examID, open, agent.NewReporter(api.base, api.token, th.ReportTimeout), submit, th, log)
	session.OnSignal(func(s agent.Signal) {
		log.Info().Str("signal", string(s.Type)).Interface("metadata", s.Metadata).Msg("Signal")
	})

	go func() {
		<-script.done
		session.Finish()
	}()

	state, err := session.Run(ctx, deadline)
	if err != nil {
		log.Error().Err(err).Str("state", string(state)).Msg("Session ended with error")
		os.Exit(1)
	}
	log.Info().Str("state", string(state)).Msg("Session ended")
}

// scriptCapture replays recorded readings. done closes once both streams run dry.
type scriptCapture struct {
	mu     sync.Mutex
	Faces  []int     `json:"faces"`
	Levels []float64 `json:"levels"`
	done   chan struct{}
	once   sync.Once
}

func loadScript(path string) (*scriptCapture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &scriptCapture{done: make(chan struct{})}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

func (s *scriptCapture) CountFaces(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.checkDone()
	if len(s.Faces) == 0 {
		return 1, nil
	}
	n := s.Faces[0]
	s.Faces = s.Faces[1:]
	return n, nil
}

func (s *scriptCapture) Level(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.checkDone()
	if len(s.Levels) == 0 {
		return 0, nil
	}
	l := s.Levels[0]
	s.Levels = s.Levels[1:]
	return l, nil
}

func (s *scriptCapture) CaptureFrame(context.Context) (string, error) {
	return "data:image/jpeg;base64,", nil
}

func (s *scriptCapture) Close() error { return nil }

func (s *scriptCapture) checkDone() {
	if len(s.Faces) == 0 && len(s.Levels) == 0 {
		s.once.Do(func() { close(s.done) })
	}
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

// call sends body as JSON and decodes the envelope's data into out.
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s %s: %s (%s)", method, path, env.Error.Code, env.Error.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
