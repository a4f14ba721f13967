package worker

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/render"
)

type statusCall struct {
	jobID   string
	status  protocol.JobStatus
	message string
}

type fakeAPI struct {
	mu          sync.Mutex
	pending     map[string][]protocol.Job
	files       map[string]string
	claimErr    error
	downloadErr error
	statuses    []statusCall
	synced      []protocol.Printer
	syncCalls   int
	heartbeats  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{pending: map[string][]protocol.Job{}, files: map[string]string{}}
}

func (f *fakeAPI) PendingJobs(_ context.Context, printerID string) ([]protocol.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := f.pending[printerID]
	delete(f.pending, printerID)
	return jobs, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, jobID string, status protocol.JobStatus, message string) (*protocol.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == protocol.StatusAssigned && f.claimErr != nil {
		return nil, f.claimErr
	}
	f.statuses = append(f.statuses, statusCall{jobID: jobID, status: status, message: message})
	return &protocol.Job{ID: jobID, Status: status}, nil
}

func (f *fakeAPI) DownloadFile(_ context.Context, jobID string, w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return f.downloadErr
	}
	_, err := io.WriteString(w, f.files[jobID])
	return err
}

func (f *fakeAPI) Heartbeat(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeAPI) SyncPrinters(_ context.Context, _ []protocol.SyncPrinter) ([]protocol.Printer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	return f.synced, nil
}

func (f *fakeAPI) statusList() []protocol.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.JobStatus, 0, len(f.statuses))
	for _, s := range f.statuses {
		out = append(out, s.status)
	}
	return out
}

type fakeRenderer struct {
	mu       sync.Mutex
	err      error
	docs     []render.Document
	opts     []render.Options
	contents []string
}

func (r *fakeRenderer) Render(_ context.Context, doc render.Document, opts render.Options) error {
	data, _ := os.ReadFile(doc.Path)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	r.opts = append(r.opts, opts)
	r.contents = append(r.contents, string(data))
	return r.err
}

var errConflict = &APIError{StatusCode: http.StatusConflict, Code: "invalid_transition", Message: "job is no longer pending"}

type fakeDiscoverer struct {
	printers []protocol.SyncPrinter
	err      error
}

func (d fakeDiscoverer) Discover(context.Context) ([]protocol.SyncPrinter, error) {
	return d.printers, d.err
}
