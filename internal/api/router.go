package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/api/handlers"
	"github.com/orrn/rprint/internal/api/middleware"
	"github.com/orrn/rprint/internal/core"
)

type Services struct {
	Jobs     *core.JobService
	Printers *core.PrinterService
	Workers  *core.WorkerService
}

type RouterConfig struct {
	JWTSecret      string
	MaxUploadBytes int64
}

// NewRouter builds the HTTP API. Client routes live under /api/v1 and worker
// routes under /api/v1/worker.
func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// Multipart parts above this spill to temp files.
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	clientAuth := middleware.NewClientAuth(cfg.JWTSecret)
	client := v1.Group("")
	client.Use(clientAuth.RequireClient())
	handlers.NewJobHandler(svc.Jobs, cfg.MaxUploadBytes).RegisterRoutes(client)

	worker := v1.Group("/worker")
	worker.Use(middleware.RequireWorker(svc.Workers))
	handlers.NewWorkerHandler(svc.Jobs, svc.Printers, svc.Workers).RegisterRoutes(worker)

	return r
}
