package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/config"
	"github.com/orrn/rprint/internal/protocol"
)

func testWorkerConfig(t *testing.T) *config.WorkerConfig {
	return &config.WorkerConfig{
		Intervals: config.IntervalsConf{
			Heartbeat: time.Hour,
			Sync:      time.Hour,
			Poll:      time.Hour,
		},
		Render: config.RenderConfig{TempDir: t.TempDir()},
	}
}

func TestSyncReconcilesPollers(t *testing.T) {
	api := newFakeAPI()
	api.synced = []protocol.Printer{
		{ID: "p1", Name: "HP_LaserJet", Status: protocol.PrinterOnline},
		{ID: "p2", Name: "Zebra_ZD420", Status: protocol.PrinterBusy},
		{ID: "p3", Name: "Gone", Status: protocol.PrinterOffline},
	}
	agent := NewAgent(testWorkerConfig(t), api, fakeDiscoverer{}, &fakeRenderer{})
	defer agent.Registry().Close()
	ctx := context.Background()

	require.NoError(t, agent.Sync(ctx))
	assert.Equal(t, []string{"p1", "p2"}, agent.Registry().IDs())

	api.mu.Lock()
	api.synced = []protocol.Printer{{ID: "p2", Name: "Zebra_ZD420", Status: protocol.PrinterOnline}}
	api.mu.Unlock()

	require.NoError(t, agent.Sync(ctx))
	assert.Equal(t, []string{"p2"}, agent.Registry().IDs())
}

func TestRunHeartbeatsAndStops(t *testing.T) {
	api := newFakeAPI()
	api.synced = []protocol.Printer{{ID: "p1", Name: "HP_LaserJet", Status: protocol.PrinterOnline}}
	cfg := testWorkerConfig(t)
	cfg.Intervals.Heartbeat = 10 * time.Millisecond
	agent := NewAgent(cfg, api, fakeDiscoverer{}, &fakeRenderer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.heartbeats >= 3 && api.syncCalls == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.Zero(t, agent.Registry().Len())
}
