package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/protocol"
)

func TestSweepDemotesOnlyStaleOnlineWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w3")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stalePrinter := f.syncPrinter(t, "w1", "HP_LaserJet")
	require.NoError(t, f.store.Workers.RecordHeartbeat(ctx, "w1", now.Add(-6*time.Minute)))
	require.NoError(t, f.store.Workers.RecordHeartbeat(ctx, "w2", now.Add(-30*time.Second)))
	// w3 never sent a heartbeat and stays offline.

	m := NewMonitor(f.store, time.Minute, 5*time.Minute)
	demoted, err := m.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, demoted)

	w1, err := f.store.Workers.GetWorkerByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, protocol.WorkerOffline, w1.Status)

	w2, err := f.store.Workers.GetWorkerByID(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, protocol.WorkerOnline, w2.Status)

	p, err := f.store.Printers.GetPrinterByID(ctx, stalePrinter)
	require.NoError(t, err)
	assert.Equal(t, protocol.PrinterOffline, p.Status)

	demoted, err = m.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, demoted, "offline workers are not touched again")

	// A heartbeat is the only way back.
	require.NoError(t, f.store.Workers.RecordHeartbeat(ctx, "w1", now))
	w1, err = f.store.Workers.GetWorkerByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, protocol.WorkerOnline, w1.Status)
}

func TestMonitorStartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Workers.RecordHeartbeat(context.Background(), "w1", time.Now().Add(-time.Hour)))

	m := NewMonitor(f.store, time.Second, time.Minute)
	m.Start(context.Background())

	assert.Eventually(t, func() bool {
		w, err := f.store.Workers.GetWorkerByID(context.Background(), "w1")
		return err == nil && w.Status == protocol.WorkerOffline
	}, 5*time.Second, 50*time.Millisecond)

	m.Stop()
}
