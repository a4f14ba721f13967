package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/render"
)

// JobAPI is the part of the server API a poller needs.
type JobAPI interface {
	PendingJobs(ctx context.Context, printerID string) ([]protocol.Job, error)
	UpdateStatus(ctx context.Context, jobID string, status protocol.JobStatus, message string) (*protocol.Job, error)
	DownloadFile(ctx context.Context, jobID string, w io.Writer) error
}

type PollerConfig struct {
	PrinterID   string
	PrinterName string
	Interval    time.Duration
	TempDir     string
}

// Poller owns one printer: on every tick it fetches the printer's pending
// jobs and prints them one after another.
type Poller struct {
	cfg      PollerConfig
	api      JobAPI
	renderer render.Renderer

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	mu       sync.Mutex
}

func NewPoller(cfg PollerConfig, api JobAPI, renderer render.Renderer) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Poller{
		cfg:      cfg,
		api:      api,
		renderer: renderer,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) PrinterID() string { return p.cfg.PrinterID }

func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.run(ctx)
}

// Stop ends the loop after the job in progress, if any, has been reported.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.done
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

func (p *Poller) log(ctx context.Context) zerolog.Logger {
	return logger.FromContext(ctx).With().
		Str("printer_id", p.cfg.PrinterID).
		Str("printer", p.cfg.PrinterName).
		Logger()
}

// Poll runs one tick: every pending job is processed in FIFO order.
func (p *Poller) Poll(ctx context.Context) {
	log := p.log(ctx)

	jobs, err := p.api.PendingJobs(ctx, p.cfg.PrinterID)
	if err != nil {
		if IsConflict(err) {
			log.Debug().Err(err).Msg("printer not accepting jobs")
			return
		}
		log.Warn().Err(err).Msg("failed to poll pending jobs")
		return
	}

	for _, job := range jobs {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		p.process(ctx, job)
	}
}

func (p *Poller) process(ctx context.Context, job protocol.Job) {
	log := p.log(ctx).With().Str("job_id", job.ID).Logger()
	ctx = logger.WithContext(ctx, log)

	if _, err := p.api.UpdateStatus(ctx, job.ID, protocol.StatusAssigned, ""); err != nil {
		if IsConflict(err) {
			log.Debug().Msg("job already claimed")
		} else {
			log.Warn().Err(err).Msg("failed to claim job")
		}
		return
	}
	if _, err := p.api.UpdateStatus(ctx, job.ID, protocol.StatusPrinting, ""); err != nil {
		log.Warn().Err(err).Msg("failed to mark job printing")
		return
	}

	start := time.Now()
	printErr := p.print(ctx, job)

	// The outcome is reported even if the agent is shutting down.
	reportCtx := context.WithoutCancel(ctx)
	if printErr != nil {
		log.Error().Err(printErr).Dur("elapsed", time.Since(start)).Msg("job failed")
		if _, err := p.api.UpdateStatus(reportCtx, job.ID, protocol.StatusFailed, printErr.Error()); err != nil {
			log.Warn().Err(err).Msg("failed to report job failure")
		}
		return
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("job completed")
	if _, err := p.api.UpdateStatus(reportCtx, job.ID, protocol.StatusCompleted, ""); err != nil {
		log.Warn().Err(err).Msg("failed to report job completion")
	}
}

// print downloads the job file into a temp file and renders it. The temp
// file is removed on every path.
func (p *Poller) print(ctx context.Context, job protocol.Job) error {
	f, err := os.CreateTemp(p.cfg.TempDir, "rprint-job-*"+safeExt(job.FileName))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := p.api.DownloadFile(ctx, job.ID, f); err != nil {
		f.Close()
		return fmt.Errorf("download failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	return p.renderer.Render(ctx, render.Document{
		Path:     path,
		FileName: job.FileName,
		MimeType: job.MimeType,
	}, render.Options{
		Printer:      p.cfg.PrinterName,
		PrintOptions: job.Options,
	})
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}
