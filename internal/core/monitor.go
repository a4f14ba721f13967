package core

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
)

// Monitor demotes workers whose last heartbeat is older than the timeout.
// Promotion back to online happens only through a heartbeat.
type Monitor struct {
	store    *db.Store
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

func NewMonitor(store *db.Store, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		store:    store,
		interval: interval,
		timeout:  timeout,
		cron:     cron.New(),
		now:      time.Now,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
		if _, err := m.Sweep(ctx, m.now()); err != nil {
			logger.FromContext(ctx).Error().Err(err).Msg("heartbeat sweep failed")
		}
	}))
	m.cron.Start()
}

// Stop waits for a running sweep to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

// Sweep marks stale online workers and their printers offline and returns
// the ids of the workers it demoted.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.Add(-m.timeout)
	var demoted []string

	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		demoted = demoted[:0]
		ids, err := tx.Workers.ListStaleWorkers(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, id := range ids {
			changed, err := tx.Workers.MarkOffline(ctx, id, cutoff)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := tx.Printers.MarkOfflineExcept(ctx, id, nil, now); err != nil {
				return err
			}
			demoted = append(demoted, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	for _, id := range demoted {
		log.Warn().Str("worker_id", id).Dur("timeout", m.timeout).Msg("worker marked offline")
	}
	return demoted, nil
}
