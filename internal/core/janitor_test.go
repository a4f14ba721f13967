package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorClearsLeftoverFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.syncPrinter(t, "w1", "HP_LaserJet")

	f.blobs.deleteErr = assert.AnError
	job := f.createJob(t, pid)
	_, err := f.jobs.Cancel(ctx, "client-1", job.ID)
	require.NoError(t, err)

	got, err := f.store.Jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.FileKey, "failed delete keeps the reference")
	assert.True(t, f.blobs.has(job.FileKey))

	j := NewJanitor(f.store, f.blobs, time.Hour)
	n, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.blobs.deleteErr = nil
	n, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, f.blobs.has(job.FileKey))

	got, err = f.store.Jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FileKey)

	// Live jobs are never touched.
	live := f.createJob(t, pid)
	n, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, f.blobs.has(live.FileKey))
}

func TestJanitorStartStop(t *testing.T) {
	f := newFixture(t)
	j := NewJanitor(f.store, f.blobs, 10*time.Millisecond)
	j.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	j.Stop()
}

func TestJanitorNonPositiveIntervalDoesNotStart(t *testing.T) {
	f := newFixture(t)
	for _, interval := range []time.Duration{0, -time.Second} {
		j := NewJanitor(f.store, f.blobs, interval)
		assert.NotPanics(t, func() {
			j.Start(context.Background())
			j.Stop()
		})
	}
}
