package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	defaultOverdueLimit = 100
	maxOverdueLimit     = 500
)

// ReportHandler serves reviewer endpoints for exam owners.
type ReportHandler struct {
	reportService  *service.ReportService
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService, attemptService *service.AttemptService, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reportService:  reportService,
		attemptService: attemptService,
		log:            log.With().Str("component", "report_handler").Logger(),
	}
}

// GetReport godoc
// GET /api/v1/admin/attempt/:id/report
// Returns the attempt report. Only the exam's creator may read it.
func (h *ReportHandler) GetReport(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.reportService.BuildReport(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		if status, _ := classify(err); status == http.StatusForbidden {
			h.log.Warn().
				Int("requester_id", claims.UserID).
				Str("attempt_id", attemptID.String()).
				Msg("Report access denied")
		}
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// ListOverdue godoc
// GET /api/v1/admin/exams/:id/overdue?limit=N
// Lists live attempts past duration plus grace, awaiting manual review.
func (h *ReportHandler) ListOverdue(c *gin.Context) {
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

	limit := defaultOverdueLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"limit": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxOverdueLimit)
	}

	overdue, err := h.attemptService.ListOverdue(c.Request.Context(), examID, claims.UserID, limit)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": overdue})
}
