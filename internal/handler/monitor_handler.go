package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const keepAliveInterval = 30 * time.Second

// MonitorFeed streams raw monitor payloads for one exam until ctx is done.
// Implemented by service.RedisMonitor.
type MonitorFeed interface {
	Feed(ctx context.Context, examID uuid.UUID) (<-chan string, error)
}

// MonitorHandler streams live proctoring activity to the exam owner over SSE.
type MonitorHandler struct {
	feed           MonitorFeed
	attemptService *service.AttemptService
	monitorService *service.MonitorService
	log            zerolog.Logger
	keepAlive      time.Duration
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(feed MonitorFeed, attemptService *service.AttemptService, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		feed:           feed,
		attemptService: attemptService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		keepAlive:      keepAliveInterval,
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	exam, err := h.attemptService.AuthorizeExamOwner(reqCtx, examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	// Subscribe before the snapshot so nothing between the two is missed.
	feed, err := h.feed.Feed(reqCtx, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	snapshot, err := h.monitorService.Snapshot(reqCtx, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"exam": map[string]interface{}{
			"id":       exam.ID.String(),
			"title":    exam.Title,
			"duration": exam.DurationMinutes,
		},
		"attempts":     snapshot.Attempts,
		"total_events": snapshot.TotalEvents,
	})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(h.keepAlive)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Int("admin_id", claims.UserID).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case payload, ok := <-feed:
			if !ok {
				return
			}
			// Payloads are already JSON; forward them untouched.
			writeSSEData(c, []byte(payload))

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func writeSSEData(c *gin.Context, payload []byte) {
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(payload)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
