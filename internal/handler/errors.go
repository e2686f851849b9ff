package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// errorMapping binds a domain error to its HTTP status and API code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var domainErrors = []errorMapping{
	{service.ErrInvalidEventType, http.StatusBadRequest, response.ErrInvalidEventType},
	{service.ErrMetadataTooLarge, http.StatusBadRequest, response.ErrMetadataTooLarge},
	{service.ErrEvidenceTooLarge, http.StatusBadRequest, response.ErrEvidenceTooLarge},
	{service.ErrTimeLimitExceeded, http.StatusBadRequest, response.ErrTimeLimitExceeded},
	{service.ErrNotExamOwner, http.StatusForbidden, response.ErrNotExamOwner},
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrNoActiveAttempt, http.StatusNotFound, response.ErrNoActiveAttempt},
	{service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	{service.ErrAttemptFinalized, http.StatusConflict, response.ErrAttemptFinalized},
}

// classify maps err to a status and code. Unknown errors become a bare 500.
func classify(err error) (int, response.ErrCode) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWith writes the envelope for err. Internal errors are logged with their
// detail; the client only sees the generic code.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
