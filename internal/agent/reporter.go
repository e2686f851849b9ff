package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

const proctorLogPath = "/api/v1/proctor/log"

// EventSink delivers one event to the server.
type EventSink interface {
	Send(ctx context.Context, req model.LogProctorEventRequest) error
}

// Reporter posts events to the proctor log endpoint.
type Reporter struct {
	url    string
	token  string
	client *http.Client
}

// NewReporter creates a Reporter for baseURL authenticating with token.
func NewReporter(baseURL, token string, timeout time.Duration) *Reporter {
	return &Reporter{
		url:    strings.TrimRight(baseURL, "/") + proctorLogPath,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Send performs a single delivery. There are no retries.
func (r *Reporter) Send(ctx context.Context, req model.LogProctorEventRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var env struct {
			Error *struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			return fmt.Errorf("server rejected event: %d %s", resp.StatusCode, env.Error.Code)
		}
		return fmt.Errorf("server rejected event: %d", resp.StatusCode)
	}
	return nil
}
