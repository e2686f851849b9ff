package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// ProctorHandler accepts proctoring events from the exam client.
type ProctorHandler struct {
	proctorService *service.ProctorService
	log            zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(proctorService *service.ProctorService, log zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		proctorService: proctorService,
		log:            log.With().Str("component", "proctor_handler").Logger(),
	}
}

// Log godoc
// POST /api/v1/proctor/log
// Records one violation event against the caller's live attempt.
func (h *ProctorHandler) Log(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.LogProctorEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	event, err := h.proctorService.Ingest(c.Request.Context(), claims.UserID, req)
	if err != nil {
		// An event without a live attempt is a bad request on this endpoint.
		if errors.Is(err, service.ErrNoActiveSession) {
			response.Fail(c, http.StatusBadRequest, response.ErrNoActiveSession)
			return
		}
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, event)
}
