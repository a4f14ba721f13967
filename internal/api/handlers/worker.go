package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/api/middleware"
	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

// WorkerHandler serves the pull protocol used by print workers.
type WorkerHandler struct {
	jobs     *core.JobService
	printers *core.PrinterService
	workers  *core.WorkerService
}

func NewWorkerHandler(jobs *core.JobService, printers *core.PrinterService, workers *core.WorkerService) *WorkerHandler {
	return &WorkerHandler{jobs: jobs, printers: printers, workers: workers}
}

func (h *WorkerHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs/pending", h.PendingJobs)
	r.PUT("/jobs/:id/status", h.UpdateStatus)
	r.GET("/jobs/:id/file", h.DownloadFile)
	r.POST("/printers/sync", h.SyncPrinters)
	r.DELETE("/printers/:id", h.DeletePrinter)
	r.POST("/heartbeat", h.Heartbeat)
}

func (h *WorkerHandler) PendingJobs(c *gin.Context) {
	printerID := c.Query("printerId")
	if printerID == "" {
		respondError(c, core.ErrPrinterRequired)
		return
	}

	jobs, err := h.jobs.PendingForPrinter(c.Request.Context(), middleware.WorkerID(c), printerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.PendingJobsResponse{Jobs: core.JobViews(jobs)})
}

func (h *WorkerHandler) UpdateStatus(c *gin.Context) {
	var req protocol.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	job, err := h.jobs.UpdateStatus(c.Request.Context(), middleware.WorkerID(c), c.Param("id"), req.Status, req.Error)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, core.JobView(job))
}

func (h *WorkerHandler) DownloadFile(c *gin.Context) {
	rc, job, err := h.jobs.OpenFile(c.Request.Context(), middleware.WorkerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": job.FileName}))
	c.Header("Content-Length", strconv.FormatInt(job.FileSize, 10))
	c.Header("Content-Type", job.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.FromContext(c.Request.Context()).Warn().Err(err).Str("job_id", job.ID).Msg("file download interrupted")
	}
}

func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	if err := h.workers.Heartbeat(c.Request.Context(), middleware.WorkerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
