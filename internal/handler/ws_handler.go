package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

const (
	// wsEnvelopeAllowance covers the JSON envelope and metadata of one frame.
	wsEnvelopeAllowance = 64 * 1024
	// wsUncappedReadLimit bounds a frame when the evidence cap is disabled.
	wsUncappedReadLimit = 16 << 20
)

// streamReadLimit sizes the largest accepted frame: the evidence cap plus the
// envelope, or wsUncappedReadLimit when maxEvidenceBytes <= 0 turns the cap off.
func streamReadLimit(maxEvidenceBytes int) int64 {
	if maxEvidenceBytes <= 0 {
		return wsUncappedReadLimit
	}
	return int64(maxEvidenceBytes) + wsEnvelopeAllowance
}

// WSHandler streams proctor events from the exam client over one WebSocket.
// Every log message passes the same limiter and checks as POST /proctor/log.
type WSHandler struct {
	proctorService *service.ProctorService
	limiter        *middleware.RateLimiter
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	maxMessage     int64
}

// NewWSHandler creates a new WSHandler. limiter is shared with the HTTP
// proctor route so both paths draw from one per-user budget.
func NewWSHandler(proctorService *service.ProctorService, limiter *middleware.RateLimiter, maxEvidenceBytes int, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctorService: proctorService,
		limiter:        limiter,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		maxMessage:     streamReadLimit(maxEvidenceBytes),
	}
}

// ProctorStream godoc
// WS /ws/v1/proctor/exams/:exam_id/stream
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Refuse the upgrade outright when there is nothing to proctor.
	attemptID, err := h.proctorService.AttemptIDFor(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxMessage)

	userID := claims.UserID
	limiterKey := middleware.KeyByUser(c)

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("exam_id", examID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Proctor stream connected")

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionLog:
			if !h.handleLog(c, conn, wsLog, limiterKey, userID, examID, &msg) {
				return
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// handleLog ingests one event. It returns false when the stream should close
// because the attempt is no longer live.
func (h *WSHandler) handleLog(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, limiterKey string, userID int, examID uuid.UUID, msg *ws.RequestEnvelope) bool {
	if ok, _ := h.limiter.Allow(limiterKey); !ok {
		_ = ws.WriteError(conn, string(response.ErrRateLimitExceeded), response.GetMessage(response.ErrRateLimitExceeded))
		return true
	}

	event, err := h.proctorService.Ingest(c.Request.Context(), userID, model.LogProctorEventRequest{
		ExamID:        examID,
		EventType:     msg.EventType,
		Metadata:      msg.Metadata,
		EvidenceImage: msg.EvidenceImage,
	})
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Proctor event ingest failed")
		}
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return code != response.ErrNoActiveSession
	}

	_ = ws.WriteTyped(conn, ws.LoggedResponse{
		Event:     ws.EventLogged,
		ID:        event.ID,
		EventType: event.EventType,
		Timestamp: event.Timestamp,
	})
	return true
}
