package core

import (
	"context"
	"sync"
	"time"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/storage"
)

const janitorBatch = 200

// Janitor removes files still referenced by finished jobs, which happens
// when the delete after a terminal transition failed.
type Janitor struct {
	store    *db.Store
	blobs    storage.Blob
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
	mu       sync.Mutex
}

func NewJanitor(store *db.Store, blobs storage.Blob, interval time.Duration) *Janitor {
	return &Janitor{
		store:    store,
		blobs:    blobs,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.done
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.done)

	if j.interval <= 0 {
		logger.FromContext(ctx).Warn().Dur("interval", j.interval).Msg("file cleanup disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				logger.FromContext(ctx).Error().Err(err).Msg("file cleanup failed")
			}
		}
	}
}

// RunOnce deletes one batch of leftover files and reports how many it
// cleared.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	jobs, err := j.store.Jobs.ListTerminalWithFiles(ctx, janitorBatch)
	if err != nil {
		return 0, err
	}

	log := logger.FromContext(ctx)
	cleared := 0
	for _, job := range jobs {
		if err := j.blobs.Delete(ctx, job.FileKey); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to delete leftover file")
			continue
		}
		if err := j.store.Jobs.ClearFileKey(ctx, job.ID, time.Now()); err != nil {
			return cleared, err
		}
		cleared++
	}

	if cleared > 0 {
		log.Info().Int("files", cleared).Msg("removed leftover job files")
	}
	return cleared, nil
}
