package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

type ErrorResponse = protocol.ErrorResponse

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{core.ErrPrinterRequired, http.StatusBadRequest, "validation_error"},
	{core.ErrFileRequired, http.StatusBadRequest, "validation_error"},
	{core.ErrInvalidOptions, http.StatusBadRequest, "validation_error"},
	{core.ErrInvalidWebhookURL, http.StatusBadRequest, "validation_error"},
	{core.ErrInvalidSyncPayload, http.StatusBadRequest, "validation_error"},
	{core.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{core.ErrInvalidCredential, http.StatusUnauthorized, "unauthorized"},
	{core.ErrForbidden, http.StatusForbidden, "forbidden"},
	{core.ErrJobNotFound, http.StatusNotFound, "not_found"},
	{core.ErrPrinterNotFound, http.StatusNotFound, "not_found"},
	{core.ErrWorkerNotFound, http.StatusNotFound, "not_found"},
	{core.ErrFileGone, http.StatusGone, "gone"},
	{core.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{core.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{core.ErrPrinterDisabled, http.StatusConflict, "printer_disabled"},
	{core.ErrPrinterNotSynced, http.StatusConflict, "printer_offline"},
	{core.ErrPrinterBusy, http.StatusConflict, "printer_busy"},
	{core.ErrStorage, http.StatusInternalServerError, "storage_error"},
}

// respondError writes the JSON error for err. Unmapped errors are logged and
// reported as database errors without their detail.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logger.FromContext(c.Request.Context()).Error().Err(err).Msg("request failed")
				c.JSON(m.status, ErrorResponse{Error: m.code, Message: "Internal storage error"})
				return
			}
			c.JSON(m.status, ErrorResponse{Error: m.code, Message: err.Error()})
			return
		}
	}

	logger.FromContext(c.Request.Context()).Error().Err(err).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "database_error",
		Message: "Internal server error",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: message})
}
