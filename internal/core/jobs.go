package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/storage"
)

const (
	defaultFailureMessage = "print failed on worker"
	maxErrorMessageLen    = 2000
)

type CreateJobInput struct {
	ClientID   string
	PrinterID  string
	FileName   string
	MimeType   string
	Size       int64
	File       io.Reader
	Options    protocol.PrintOptions
	WebhookURL string
}

type JobService struct {
	store    *db.Store
	blobs    storage.Blob
	notifier Notifier
	now      func() time.Time

	// pending tracks notifications still in flight.
	pending sync.WaitGroup
}

func NewJobService(store *db.Store, blobs storage.Blob, notifier Notifier) *JobService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &JobService{
		store:    store,
		blobs:    blobs,
		notifier: notifier,
		now:      time.Now,
	}
}

// Wait blocks until every notification started so far has returned.
func (s *JobService) Wait() {
	s.pending.Wait()
}

func (s *JobService) Create(ctx context.Context, in CreateJobInput) (*db.PrintJob, error) {
	if strings.TrimSpace(in.PrinterID) == "" {
		return nil, ErrPrinterRequired
	}
	if in.File == nil {
		return nil, ErrFileRequired
	}

	opts := in.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if in.WebhookURL != "" && !validCallbackURL(in.WebhookURL) {
		return nil, ErrInvalidWebhookURL
	}

	printer, err := s.store.Printers.GetPrinterByID(ctx, in.PrinterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}
		return nil, err
	}
	if !printer.Enabled {
		return nil, ErrPrinterDisabled
	}
	if printer.MaxCopies > 0 && opts.Copies > printer.MaxCopies {
		return nil, fmt.Errorf("%w: printer accepts at most %d copies", ErrInvalidOptions, printer.MaxCopies)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := storage.NewKey(in.FileName)
	if err := s.blobs.Put(ctx, key, in.File, in.Size, mimeType); err != nil {
		return nil, fmt.Errorf("%w: failed to store job file: %w", ErrStorage, err)
	}

	job := &db.PrintJob{
		ID:          uuid.NewString(),
		ClientID:    in.ClientID,
		PrinterID:   printer.ID,
		FileKey:     key,
		FileName:    in.FileName,
		FileSize:    in.Size,
		MimeType:    mimeType,
		Copies:      opts.Copies,
		ColorMode:   opts.ColorMode,
		Duplex:      opts.Duplex,
		Orientation: opts.Orientation,
		PaperSize:   opts.PaperSize,
		Scale:       opts.Scale,
		Status:      string(protocol.StatusPending),
		WebhookURL:  in.WebhookURL,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.Jobs.CreateJob(ctx, job); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			logger.FromContext(ctx).Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("job_id", job.ID).
		Str("printer_id", job.PrinterID).
		Str("client_id", job.ClientID).
		Int64("size", job.FileSize).
		Msg("job created")
	return job, nil
}

// Get returns a job owned by clientID. Jobs of other clients read as missing.
func (s *JobService) Get(ctx context.Context, clientID, jobID string) (*db.PrintJob, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, filter db.JobFilter) ([]*db.PrintJob, error) {
	if filter.Status != "" && !protocol.JobStatus(filter.Status).Valid() {
		return nil, ErrInvalidStatus
	}
	return s.store.Jobs.ListJobs(ctx, filter)
}

// Cancel moves a pending or assigned job to cancelled. It sends no webhook.
func (s *JobService) Cancel(ctx context.Context, clientID, jobID string) (*db.PrintJob, error) {
	job, err := s.Get(ctx, clientID, jobID)
	if err != nil {
		return nil, err
	}

	from := protocol.JobStatus(job.Status)
	if !CanCancel(from) {
		return nil, ErrInvalidState
	}

	now := s.now().UTC()
	ok, err := s.store.Jobs.TransitionJob(ctx, job.ID, string(from), string(protocol.StatusCancelled), "", nil, &now, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a worker transition.
		return nil, ErrInvalidState
	}

	s.releaseFile(ctx, job)

	logger.FromContext(ctx).Info().Str("job_id", job.ID).Str("from", string(from)).Msg("job cancelled")
	return s.getJob(ctx, job.ID)
}

// PendingForPrinter lists the printer's pending jobs, oldest first. The
// printer must belong to workerID and must have been part of its last sync.
func (s *JobService) PendingForPrinter(ctx context.Context, workerID, printerID string) ([]*db.PrintJob, error) {
	if printerID == "" {
		return nil, ErrPrinterRequired
	}
	printer, err := s.ownedPrinter(ctx, workerID, printerID)
	if err != nil {
		return nil, err
	}
	if printer.Status == protocol.PrinterOffline {
		return nil, ErrPrinterNotSynced
	}
	if !printer.Enabled {
		return []*db.PrintJob{}, nil
	}

	jobs, err := s.store.Jobs.ListPendingByPrinter(ctx, printerID)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*db.PrintJob{}
	}
	return jobs, nil
}

// UpdateStatus applies a worker-reported transition as a compare-and-swap
// against the job's current status.
func (s *JobService) UpdateStatus(ctx context.Context, workerID, jobID string, to protocol.JobStatus, errorMessage string) (*db.PrintJob, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedPrinter(ctx, workerID, job.PrinterID); err != nil {
		if errors.Is(err, ErrPrinterNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	from := protocol.JobStatus(job.Status)
	if !IsValidWorkerTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := s.now().UTC()
	var assignedAt, completedAt *time.Time
	if from == protocol.StatusPending {
		assignedAt = &now
	}
	if to.Terminal() {
		completedAt = &now
	}

	msg := ""
	if to == protocol.StatusFailed {
		msg = failureMessage(errorMessage)
	}

	ok, err := s.store.Jobs.TransitionJob(ctx, job.ID, string(from), string(to), msg, assignedAt, completedAt, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: job %s is no longer %s", ErrInvalidTransition, job.ID, from)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.ID).
		Str("worker_id", workerID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("job status updated")

	if to.Terminal() {
		s.releaseFile(ctx, job)
	}

	updated, err := s.getJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, to.Event(), updated)
	return updated, nil
}

// OpenFile streams the job's file to the worker that owns its printer.
func (s *JobService) OpenFile(ctx context.Context, workerID, jobID string) (io.ReadCloser, *db.PrintJob, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.ownedPrinter(ctx, workerID, job.PrinterID); err != nil {
		if errors.Is(err, ErrPrinterNotFound) {
			return nil, nil, ErrForbidden
		}
		return nil, nil, err
	}
	if job.FileKey == "" {
		return nil, nil, ErrFileGone
	}

	rc, err := s.blobs.Open(ctx, job.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrFileGone
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return rc, job, nil
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*db.PrintJob, error) {
	job, err := s.store.Jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ownedPrinter returns ErrPrinterNotFound for unknown printers and
// ErrForbidden for printers of another worker.
func (s *JobService) ownedPrinter(ctx context.Context, workerID, printerID string) (*db.Printer, error) {
	printer, err := s.store.Printers.GetPrinterByID(ctx, printerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}
		return nil, err
	}
	if printer.WorkerID != workerID {
		return nil, ErrForbidden
	}
	return printer, nil
}

// releaseFile deletes a terminal job's blob. Failures are left for the
// janitor.
func (s *JobService) releaseFile(ctx context.Context, job *db.PrintJob) {
	if job.FileKey == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx)

	if err := s.blobs.Delete(ctx, job.FileKey); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to delete job file")
		return
	}
	if err := s.store.Jobs.ClearFileKey(ctx, job.ID, s.now()); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to clear job file reference")
	}
}

func (s *JobService) notify(ctx context.Context, event string, job *db.PrintJob) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.notifier.Notify(ctx, event, job)
	}()
}

func failureMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return defaultFailureMessage
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

func validCallbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
