package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/db"
)

type captured struct {
	body      []byte
	signature string
	event     string
}

func newStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.Open(context.Background(), db.Config{Path: filepath.Join(t.TempDir(), "hooks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addHook(t *testing.T, s *db.Store, id, url, secret string, events ...string) {
	t.Helper()
	require.NoError(t, s.Webhooks.CreateWebhook(context.Background(), &db.Webhook{
		ID: id, ClientID: "client-1", URL: url, Events: events, Secret: secret, Active: true, CreatedAt: time.Now(),
	}))
}

func testJob() *db.PrintJob {
	return &db.PrintJob{
		ID: "job-1", ClientID: "client-1", PrinterID: "p1", FileName: "a.pdf",
		Copies: 1, Status: "completed", CreatedAt: time.Now(),
	}
}

func recorder(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{body: body, signature: r.Header.Get(SignatureHeader), event: r.Header.Get(EventHeader)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestNotifySignsExactBody(t *testing.T) {
	s := newStore(t)
	srv, got := recorder(t, http.StatusOK)
	addHook(t, s, "h1", srv.URL, "s3cret", "job.completed")

	n := NewNotifier(s, Config{Timeout: time.Second})
	n.Notify(context.Background(), "job.completed", testJob())

	calls := got()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Equal(t, "job.completed", c.event)
	assert.True(t, Verify(c.body, "s3cret", c.signature))
	assert.False(t, Verify(c.body, "other", c.signature))
	assert.Contains(t, c.signature, "sha256=")

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(c.body, &payload))
	assert.Equal(t, "job.completed", payload.Event)
	assert.Equal(t, "job-1", payload.Data.Job.ID)
	assert.False(t, payload.Timestamp.IsZero())

	hooks, err := s.Webhooks.ListActiveForEvent(context.Background(), "client-1", "job.completed")
	require.NoError(t, err)
	require.NotNil(t, hooks[0].LastTriggeredAt)
}

func TestNotifyFiltersEventsAndIncludesJobCallback(t *testing.T) {
	s := newStore(t)
	subscribed, gotSubscribed := recorder(t, http.StatusOK)
	other, gotOther := recorder(t, http.StatusOK)
	callback, gotCallback := recorder(t, http.StatusOK)
	addHook(t, s, "h1", subscribed.URL, "", "job.failed")
	addHook(t, s, "h2", other.URL, "", "job.completed")

	job := testJob()
	job.WebhookURL = callback.URL

	NewNotifier(s, Config{}).Notify(context.Background(), "job.failed", job)

	assert.Len(t, gotSubscribed(), 1)
	assert.Empty(t, gotOther())
	calls := gotCallback()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].signature, "callbacks without a secret are unsigned")
}

func TestNotifySwallowsFailures(t *testing.T) {
	s := newStore(t)
	failing, gotFailing := recorder(t, http.StatusInternalServerError)
	addHook(t, s, "h1", failing.URL, "", "job.completed")
	addHook(t, s, "h2", "http://127.0.0.1:1/unreachable", "", "job.completed")

	NewNotifier(s, Config{Timeout: time.Second}).Notify(context.Background(), "job.completed", testJob())

	assert.Len(t, gotFailing(), 1, "no retries")
}

func TestNotifyTimesOut(t *testing.T) {
	s := newStore(t)
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		slow.Close()
	})
	addHook(t, s, "h1", slow.URL, "", "job.completed")

	start := time.Now()
	NewNotifier(s, Config{Timeout: 100 * time.Millisecond}).Notify(context.Background(), "job.completed", testJob())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNotifyDeliversInParallel(t *testing.T) {
	s := newStore(t)
	const subscribers = 12

	var arrived atomic.Int32
	all := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if arrived.Add(1) == subscribers {
			close(all)
		}
		select {
		case <-all:
			w.WriteHeader(http.StatusOK)
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusGatewayTimeout)
		}
	})
	for i := 0; i < subscribers; i++ {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		addHook(t, s, fmt.Sprintf("h%d", i), srv.URL, "", "job.completed")
	}

	start := time.Now()
	NewNotifier(s, Config{Timeout: 5 * time.Second}).Notify(context.Background(), "job.completed", testJob())

	assert.EqualValues(t, subscribers, arrived.Load())
	assert.Less(t, time.Since(start), 2*time.Second, "every delivery must be in flight at once")
}

func TestSign(t *testing.T) {
	// printf '{"a":1}' | openssl dgst -sha256 -hmac key
	assert.Equal(t,
		"sha256=88a67f24bbcdaed0e6c997404bb79a743baf44c6bab2f4c27328e3009d22e342",
		Sign([]byte(`{"a":1}`), "key"))
	assert.NotEqual(t, Sign([]byte("x"), "k"), Sign([]byte("x "), "k"))
}
