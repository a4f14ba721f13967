package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/storage/local"
)

const jwtSecret = "router-test-secret"

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	services Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store, err := db.Open(context.Background(), db.Config{Path: filepath.Join(dir, "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blobs, err := local.New(filepath.Join(dir, "files"))
	require.NoError(t, err)

	svc := Services{
		Jobs:     core.NewJobService(store, blobs, nil),
		Printers: core.NewPrinterService(store),
		Workers:  core.NewWorkerService(store, 1<<20, time.Minute),
	}
	t.Cleanup(svc.Jobs.Wait)

	return &testServer{
		t:        t,
		router:   NewRouter(RouterConfig{JWTSecret: jwtSecret, MaxUploadBytes: 4096}, svc),
		services: svc,
	}
}

func (s *testServer) clientToken(clientID string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   clientID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(jwtSecret))
	require.NoError(s.t, err)
	return "Bearer " + token
}

func (s *testServer) registerWorker(name string) string {
	_, cred, err := s.services.Workers.Register(context.Background(), name)
	require.NoError(s.t, err)
	return "Worker " + cred
}

func (s *testServer) do(method, path, auth string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path, auth string, v interface{}) *httptest.ResponseRecorder {
	var body []byte
	if v != nil {
		var err error
		body, err = json.Marshal(v)
		require.NoError(s.t, err)
	}
	return s.do(method, path, auth, body, "application/json")
}

func (s *testServer) syncPrinters(worker string, names ...string) []protocol.Printer {
	req := protocol.SyncRequest{Printers: []protocol.SyncPrinter{}}
	for _, n := range names {
		req.Printers = append(req.Printers, protocol.SyncPrinter{Name: n})
	}
	w := s.doJSON(http.MethodPost, "/api/v1/worker/printers/sync", worker, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp protocol.SyncResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Printers
}

func uploadForm(t *testing.T, fields map[string]string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", "invoice.pdf")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func (s *testServer) submit(client string, fields map[string]string, content []byte) *httptest.ResponseRecorder {
	body, ct := uploadForm(s.t, fields, content)
	return s.do(http.MethodPost, "/api/v1/jobs", client, body, ct)
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) protocol.Job {
	t.Helper()
	var job protocol.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job), w.Body.String())
	return job
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestDispatchLifecycle(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	client := s.clientToken("client-1")
	printers := s.syncPrinters(worker, "HP_LaserJet")
	require.Len(t, printers, 1)
	printerID := printers[0].ID

	w := s.submit(client, map[string]string{"printerId": printerID, "copies": "2", "colorMode": "monochrome"}, pdf)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decodeJob(t, w)
	assert.Equal(t, protocol.StatusPending, job.Status)
	assert.Equal(t, 2, job.Options.Copies)
	assert.Equal(t, "monochrome", job.Options.ColorMode)
	assert.Equal(t, "application/pdf", job.MimeType)
	assert.Equal(t, "invoice.pdf", job.FileName)

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/pending?printerId="+printerID, worker, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var pending protocol.PendingJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending.Jobs, 1)
	assert.Equal(t, job.ID, pending.Jobs[0].ID)

	statusPath := "/api/v1/worker/jobs/" + job.ID + "/status"
	w = s.doJSON(http.MethodPut, statusPath, worker, protocol.StatusUpdate{Status: protocol.StatusAssigned})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decodeJob(t, w).AssignedAt)

	w = s.doJSON(http.MethodPut, statusPath, worker, protocol.StatusUpdate{Status: protocol.StatusAssigned})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/"+job.ID+"/file", worker, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pdf, w.Body.Bytes())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=invoice.pdf`)

	w = s.doJSON(http.MethodPut, statusPath, worker, protocol.StatusUpdate{Status: protocol.StatusPrinting})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.doJSON(http.MethodPut, statusPath, worker, protocol.StatusUpdate{Status: protocol.StatusCompleted})
	require.Equal(t, http.StatusOK, w.Code)
	done := decodeJob(t, w)
	assert.Equal(t, protocol.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/"+job.ID+"/file", worker, nil, "")
	assert.Equal(t, http.StatusGone, w.Code)

	w = s.do(http.MethodGet, "/api/v1/jobs/"+job.ID, client, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, protocol.StatusCompleted, decodeJob(t, w).Status)
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	client := s.clientToken("client-1")
	printerID := s.syncPrinters(worker, "HP_LaserJet")[0].ID

	tests := []struct {
		name    string
		fields  map[string]string
		content []byte
		status  int
		code    string
	}{
		{"missing printer", map[string]string{}, pdf, http.StatusBadRequest, "validation_error"},
		{"missing file", map[string]string{"printerId": printerID}, nil, http.StatusBadRequest, "validation_error"},
		{"bad copies", map[string]string{"printerId": printerID, "copies": "many"}, pdf, http.StatusBadRequest, "validation_error"},
		{"bad duplex", map[string]string{"printerId": printerID, "duplex": "sideways"}, pdf, http.StatusBadRequest, "validation_error"},
		{"bad webhook", map[string]string{"printerId": printerID, "webhookUrl": "ftp://x"}, pdf, http.StatusBadRequest, "validation_error"},
		{"unknown printer", map[string]string{"printerId": "nope"}, pdf, http.StatusNotFound, "not_found"},
		{"too large", map[string]string{"printerId": printerID}, bytes.Repeat([]byte("x"), 8192), http.StatusRequestEntityTooLarge, "payload_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.submit(client, tt.fields, tt.content)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	w := s.do(http.MethodGet, "/api/v1/jobs", client, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[]}`, w.Body.String())
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	client := s.clientToken("client-1")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/jobs", "", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/jobs", worker, nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/worker/heartbeat", client, nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/worker/heartbeat", "Worker bogus.secret", nil, "").Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/v1/worker/heartbeat", worker, nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, "").Code)
}

func TestWorkerIsolation(t *testing.T) {
	s := newTestServer(t)
	owner := s.registerWorker("owner")
	intruder := s.registerWorker("intruder")
	client := s.clientToken("client-1")
	printerID := s.syncPrinters(owner, "HP_LaserJet")[0].ID

	job := decodeJob(t, s.submit(client, map[string]string{"printerId": printerID}, pdf))

	w := s.doJSON(http.MethodPut, "/api/v1/worker/jobs/"+job.ID+"/status", intruder, protocol.StatusUpdate{Status: protocol.StatusAssigned})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/pending?printerId="+printerID, intruder, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/"+job.ID+"/file", intruder, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/jobs/"+job.ID, s.clientToken("client-2"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusUpdateValidation(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	client := s.clientToken("client-1")
	printerID := s.syncPrinters(worker, "HP_LaserJet")[0].ID
	job := decodeJob(t, s.submit(client, map[string]string{"printerId": printerID}, pdf))
	path := "/api/v1/worker/jobs/" + job.ID + "/status"

	w := s.doJSON(http.MethodPut, path, worker, map[string]string{"status": "exploded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", errorCode(t, w))

	w = s.doJSON(http.MethodPut, path, worker, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPut, path, worker, protocol.StatusUpdate{Status: protocol.StatusCompleted})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, w))

	w = s.doJSON(http.MethodPut, "/api/v1/worker/jobs/missing/status", worker, protocol.StatusUpdate{Status: protocol.StatusAssigned})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancel(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	client := s.clientToken("client-1")
	printerID := s.syncPrinters(worker, "HP_LaserJet")[0].ID
	job := decodeJob(t, s.submit(client, map[string]string{"printerId": printerID}, pdf))

	w := s.do(http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", client, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, protocol.StatusCancelled, decodeJob(t, w).Status)

	w = s.do(http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", client, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", errorCode(t, w))

	w = s.doJSON(http.MethodPut, "/api/v1/worker/jobs/"+job.ID+"/status", worker, protocol.StatusUpdate{Status: protocol.StatusAssigned})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/jobs?status=cancelled", client, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), job.ID)

	w = s.do(http.MethodGet, "/api/v1/jobs?status=bogus", client, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnsyncedPrinterIsOffline(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")
	printerID := s.syncPrinters(worker, "HP_LaserJet")[0].ID

	s.syncPrinters(worker)

	w := s.do(http.MethodGet, "/api/v1/worker/jobs/pending?printerId="+printerID, worker, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "printer_offline", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/worker/jobs/pending", worker, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/worker/printers/"+printerID, worker, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/worker/printers/"+printerID, worker, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncRejectsDuplicateNames(t *testing.T) {
	s := newTestServer(t)
	worker := s.registerWorker("front-desk")

	w := s.doJSON(http.MethodPost, "/api/v1/worker/printers/sync", worker, protocol.SyncRequest{
		Printers: []protocol.SyncPrinter{{Name: "A"}, {Name: "A"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/v1/worker/printers/sync", worker, []byte("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
