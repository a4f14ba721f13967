package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/api/middleware"
	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/protocol"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type JobHandler struct {
	jobs         *core.JobService
	maxBodyBytes int64
}

func NewJobHandler(jobs *core.JobService, maxUploadBytes int64) *JobHandler {
	return &JobHandler{jobs: jobs, maxBodyBytes: maxUploadBytes}
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "payload_too_large",
				Message: "File exceeds the maximum upload size",
			})
			return
		}
		if errors.Is(err, http.ErrMissingFile) {
			respondError(c, core.ErrFileRequired)
			return
		}
		badRequest(c, "Invalid multipart form: "+err.Error())
		return
	}

	printerID := strings.TrimSpace(c.PostForm("printerId"))
	if printerID == "" {
		respondError(c, core.ErrPrinterRequired)
		return
	}

	opts, err := optionsFromForm(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	file, err := fh.Open()
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	mimeType, err := detectMimeType(fh, file)
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), core.CreateJobInput{
		ClientID:   middleware.ClientID(c),
		PrinterID:  printerID,
		FileName:   fh.Filename,
		MimeType:   mimeType,
		Size:       fh.Size,
		File:       file,
		Options:    opts,
		WebhookURL: strings.TrimSpace(c.PostForm("webhookUrl")),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, core.JobView(job))
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), middleware.ClientID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, core.JobView(job))
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative integer")
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), db.JobFilter{
		ClientID:  middleware.ClientID(c),
		PrinterID: c.Query("printerId"),
		Status:    c.Query("status"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": core.JobViews(jobs)})
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), middleware.ClientID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, core.JobView(job))
}

func optionsFromForm(c *gin.Context) (protocol.PrintOptions, error) {
	opts := protocol.PrintOptions{
		ColorMode:   c.PostForm("colorMode"),
		Duplex:      c.PostForm("duplex"),
		Orientation: c.PostForm("orientation"),
		PaperSize:   c.PostForm("paperSize"),
		Scale:       c.PostForm("scale"),
	}
	if raw := strings.TrimSpace(c.PostForm("copies")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, errors.New("copies must be a positive integer")
		}
		opts.Copies = n
	}
	return opts, nil
}

// detectMimeType trusts the part header unless it is missing or generic, in
// which case the content is sniffed. The file is rewound afterwards.
func detectMimeType(fh *multipart.FileHeader, file multipart.File) (string, error) {
	declared := fh.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
