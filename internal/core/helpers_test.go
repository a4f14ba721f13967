package core

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/storage"
)

type memBlob struct {
	mu        sync.Mutex
	files     map[string][]byte
	putErr    error
	deleteErr error
}

func newMemBlob() *memBlob {
	return &memBlob{files: make(map[string][]byte)}
}

func (m *memBlob) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memBlob) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlob) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memBlob) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event string, job *db.PrintJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+job.ID)
}

func (r *recordingNotifier) sorted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.events...)
	sort.Strings(out)
	return out
}

type fixture struct {
	store    *db.Store
	blobs    *memBlob
	notifier *recordingNotifier
	jobs     *JobService
	printers *PrinterService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(context.Background(), db.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blobs := newMemBlob()
	n := &recordingNotifier{}
	f := &fixture{
		store:    store,
		blobs:    blobs,
		notifier: n,
		jobs:     NewJobService(store, blobs, n),
		printers: NewPrinterService(store),
	}
	f.addWorker(t, "w1")
	f.addWorker(t, "w2")
	return f
}

func (f *fixture) addWorker(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.Workers.CreateWorker(context.Background(), &db.Worker{
		ID: id, Name: id, CredentialHash: "x", Status: protocol.WorkerOffline, CreatedAt: time.Now(),
	}))
}

// syncPrinter registers a single printer for workerID and returns its id.
func (f *fixture) syncPrinter(t *testing.T, workerID, name string) string {
	t.Helper()
	printers, err := f.printers.Sync(context.Background(), workerID, []protocol.SyncPrinter{{Name: name}})
	require.NoError(t, err)
	require.Len(t, printers, 1)
	return printers[0].ID
}

func (f *fixture) createJob(t *testing.T, printerID string) *db.PrintJob {
	t.Helper()
	job, err := f.jobs.Create(context.Background(), CreateJobInput{
		ClientID:  "client-1",
		PrinterID: printerID,
		FileName:  "doc.pdf",
		MimeType:  "application/pdf",
		Size:      8,
		File:      strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	return job
}

func dbFilter(clientID string) db.JobFilter {
	return db.JobFilter{ClientID: clientID}
}
