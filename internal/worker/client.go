// Package worker is the agent that runs next to the printers: it syncs local
// CUPS queues to the server, polls each printer for jobs and prints them.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orrn/rprint/internal/protocol"
)

const apiPrefix = "/api/v1/worker"

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %s (status: %d, code: %s)", e.Message, e.StatusCode, e.Code)
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type Client struct {
	baseURL         string
	credential      string
	httpClient      *http.Client
	requestTimeout  time.Duration
	downloadTimeout time.Duration
}

// NewClient returns a client whose API calls are bounded by requestTimeout.
// File downloads, including streaming the body, get downloadTimeout.
func NewClient(baseURL, credential string, requestTimeout, downloadTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Minute
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		credential:      credential,
		httpClient:      &http.Client{},
		requestTimeout:  requestTimeout,
		downloadTimeout: downloadTimeout,
	}
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/heartbeat", nil, nil)
}

func (c *Client) SyncPrinters(ctx context.Context, printers []protocol.SyncPrinter) ([]protocol.Printer, error) {
	if printers == nil {
		printers = []protocol.SyncPrinter{}
	}
	var resp protocol.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/printers/sync", protocol.SyncRequest{Printers: printers}, &resp); err != nil {
		return nil, err
	}
	return resp.Printers, nil
}

func (c *Client) PendingJobs(ctx context.Context, printerID string) ([]protocol.Job, error) {
	var resp protocol.PendingJobsResponse
	path := "/jobs/pending?printerId=" + url.QueryEscape(printerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) UpdateStatus(ctx context.Context, jobID string, status protocol.JobStatus, message string) (*protocol.Job, error) {
	var job protocol.Job
	body := protocol.StatusUpdate{Status: status, Error: message}
	if err := c.do(ctx, http.MethodPut, "/jobs/"+url.PathEscape(jobID)+"/status", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DownloadFile streams the job's file into w.
func (c *Client) DownloadFile(ctx context.Context, jobID string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/file", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Worker "+c.credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body protocol.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Error
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}
