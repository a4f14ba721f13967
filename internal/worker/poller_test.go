package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/protocol"
)

func newTestPoller(t *testing.T, api *fakeAPI, r *fakeRenderer) (*Poller, string) {
	t.Helper()
	dir := t.TempDir()
	return NewPoller(PollerConfig{
		PrinterID:   "p1",
		PrinterName: "Zebra_ZD420",
		Interval:    time.Hour,
		TempDir:     dir,
	}, api, r), dir
}

func pendingJob(id string) protocol.Job {
	opts := protocol.DefaultOptions()
	opts.PaperSize = "4x6"
	return protocol.Job{ID: id, PrinterID: "p1", FileName: "label.pdf", MimeType: "application/pdf", Options: opts, Status: protocol.StatusPending}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPollPrintsJobsInOrder(t *testing.T) {
	api := newFakeAPI()
	api.pending["p1"] = []protocol.Job{pendingJob("j1"), pendingJob("j2")}
	api.files["j1"] = "%PDF-1 one"
	api.files["j2"] = "%PDF-1 two"
	r := &fakeRenderer{}
	p, dir := newTestPoller(t, api, r)

	p.Poll(context.Background())

	assert.Equal(t, []protocol.JobStatus{
		protocol.StatusAssigned, protocol.StatusPrinting, protocol.StatusCompleted,
		protocol.StatusAssigned, protocol.StatusPrinting, protocol.StatusCompleted,
	}, api.statusList())
	require.Len(t, r.docs, 2)
	assert.Equal(t, []string{"%PDF-1 one", "%PDF-1 two"}, r.contents)
	assert.Equal(t, "Zebra_ZD420", r.opts[0].Printer)
	assert.Equal(t, "4x6", r.opts[0].PaperSize)
	assert.Equal(t, "label.pdf", r.docs[0].FileName)
	assertNoTempFiles(t, dir)
}

func TestPollReportsRenderFailure(t *testing.T) {
	api := newFakeAPI()
	api.pending["p1"] = []protocol.Job{pendingJob("j1")}
	r := &fakeRenderer{err: errors.New("printing on Zebra_ZD420 failed: resize: gs missing")}
	p, dir := newTestPoller(t, api, r)

	p.Poll(context.Background())

	require.Len(t, api.statuses, 3)
	last := api.statuses[2]
	assert.Equal(t, protocol.StatusFailed, last.status)
	assert.Contains(t, last.message, "gs missing")
	assertNoTempFiles(t, dir)
}

func TestPollReportsDownloadFailure(t *testing.T) {
	api := newFakeAPI()
	api.pending["p1"] = []protocol.Job{pendingJob("j1")}
	api.downloadErr = &APIError{StatusCode: 410, Code: "gone", Message: "job file is no longer available"}
	r := &fakeRenderer{}
	p, dir := newTestPoller(t, api, r)

	p.Poll(context.Background())

	assert.Empty(t, r.docs)
	require.Len(t, api.statuses, 3)
	assert.Equal(t, protocol.StatusFailed, api.statuses[2].status)
	assert.Contains(t, api.statuses[2].message, "download failed")
	assertNoTempFiles(t, dir)
}

func TestPollSkipsLostClaim(t *testing.T) {
	api := newFakeAPI()
	api.pending["p1"] = []protocol.Job{pendingJob("j1")}
	api.claimErr = errConflict
	r := &fakeRenderer{}
	p, _ := newTestPoller(t, api, r)

	p.Poll(context.Background())

	assert.Empty(t, api.statuses)
	assert.Empty(t, r.docs)
}

func TestPollerStartStop(t *testing.T) {
	api := newFakeAPI()
	api.pending["p1"] = []protocol.Job{pendingJob("j1")}
	r := &fakeRenderer{}
	p := NewPoller(PollerConfig{PrinterID: "p1", PrinterName: "HP", Interval: 10 * time.Millisecond, TempDir: t.TempDir()}, api, r)

	p.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(api.statusList()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()
	p.Stop()

	never := NewPoller(PollerConfig{PrinterID: "p2"}, api, r)
	never.Stop()
}
