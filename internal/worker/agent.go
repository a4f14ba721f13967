package worker

import (
	"context"
	"time"

	"github.com/orrn/rprint/internal/config"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/render"
)

// API is the server surface the agent talks to.
type API interface {
	JobAPI
	Heartbeat(ctx context.Context) error
	SyncPrinters(ctx context.Context, printers []protocol.SyncPrinter) ([]protocol.Printer, error)
}

var _ API = (*Client)(nil)

// Agent keeps the worker registered: it sends heartbeats, re-syncs local
// printers and runs one poller per synced printer.
type Agent struct {
	api        API
	discoverer Discoverer
	renderer   render.Renderer
	registry   *Registry

	heartbeatInterval time.Duration
	syncInterval      time.Duration
	pollInterval      time.Duration
	tempDir           string
}

func NewAgent(cfg *config.WorkerConfig, api API, discoverer Discoverer, renderer render.Renderer) *Agent {
	return &Agent{
		api:               api,
		discoverer:        discoverer,
		renderer:          renderer,
		registry:          NewRegistry(),
		heartbeatInterval: cfg.Intervals.Heartbeat,
		syncInterval:      cfg.Intervals.Sync,
		pollInterval:      cfg.Intervals.Poll,
		tempDir:           cfg.Render.TempDir,
	}
}

func (a *Agent) Registry() *Registry { return a.registry }

// Run blocks until ctx is cancelled, then stops every poller.
func (a *Agent) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	defer a.registry.Close()

	a.heartbeat(ctx)
	if err := a.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("initial printer sync failed")
	}

	heartbeat := time.NewTicker(a.heartbeatInterval)
	defer heartbeat.Stop()
	sync := time.NewTicker(a.syncInterval)
	defer sync.Stop()

	log.Info().
		Dur("heartbeat_interval", a.heartbeatInterval).
		Dur("sync_interval", a.syncInterval).
		Dur("poll_interval", a.pollInterval).
		Msg("worker agent started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker agent stopping")
			return nil
		case <-heartbeat.C:
			a.heartbeat(ctx)
		case <-sync.C:
			if err := a.Sync(ctx); err != nil {
				log.Error().Err(err).Msg("printer sync failed")
			}
		}
	}
}

func (a *Agent) heartbeat(ctx context.Context) {
	if err := a.api.Heartbeat(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("heartbeat failed")
	}
}

// Sync reports the local printers and reconciles pollers with the server's
// answer.
func (a *Agent) Sync(ctx context.Context) error {
	local, err := a.discoverer.Discover(ctx)
	if err != nil {
		return err
	}

	printers, err := a.api.SyncPrinters(ctx, local)
	if err != nil {
		return err
	}

	a.reconcile(ctx, printers)
	return nil
}

func (a *Agent) reconcile(ctx context.Context, printers []protocol.Printer) {
	log := logger.FromContext(ctx)

	want := make(map[string]protocol.Printer, len(printers))
	for _, p := range printers {
		if p.Status == protocol.PrinterOffline {
			continue
		}
		want[p.ID] = p
	}

	for _, id := range a.registry.IDs() {
		if _, ok := want[id]; !ok {
			a.registry.Remove(id)
			log.Info().Str("printer_id", id).Msg("printer poller stopped")
		}
	}

	for id, p := range want {
		if a.registry.Has(id) {
			continue
		}
		poller := NewPoller(PollerConfig{
			PrinterID:   id,
			PrinterName: p.Name,
			Interval:    a.pollInterval,
			TempDir:     a.tempDir,
		}, a.api, a.renderer)
		if a.registry.Add(poller) {
			poller.Start(ctx)
			log.Info().Str("printer_id", id).Str("printer", p.Name).Msg("printer poller started")
		}
	}
}
