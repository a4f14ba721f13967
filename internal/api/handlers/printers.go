package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/api/middleware"
	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/protocol"
)

func (h *WorkerHandler) SyncPrinters(c *gin.Context) {
	var req protocol.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	printers, err := h.printers.Sync(c.Request.Context(), middleware.WorkerID(c), req.Printers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.SyncResponse{Printers: core.PrinterViews(printers)})
}

func (h *WorkerHandler) DeletePrinter(c *gin.Context) {
	if err := h.printers.Delete(c.Request.Context(), middleware.WorkerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
