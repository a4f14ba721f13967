package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	signaturePrefix = "sha256="
)

type WebhookPayload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      JobData   `json:"data"`
}

type JobData struct {
	Job protocol.Job `json:"job"`
}

type Config struct {
	Timeout time.Duration
}

// target is one delivery destination. Subscription targets carry the
// subscription id so last_triggered_at can be refreshed.
type target struct {
	webhookID string
	url       string
	secret    string
}

// Notifier delivers job events once, without retries. Failures are logged
// and discarded.
type Notifier struct {
	store      *db.Store
	httpClient *http.Client
	now        func() time.Time
}

func NewNotifier(store *db.Store, cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Notifier{
		store: store,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

var _ core.Notifier = (*Notifier)(nil)

// Notify sends event to every active subscription of the job's client that
// lists it, plus the callback URL attached to the job. It returns once every
// delivery has finished.
func (n *Notifier) Notify(ctx context.Context, event string, job *db.PrintJob) {
	log := logger.FromContext(ctx).With().Str("event", event).Str("job_id", job.ID).Logger()

	targets, err := n.targets(ctx, event, job)
	if err != nil {
		log.Error().Err(err).Msg("failed to load webhook subscriptions")
		return
	}
	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(WebhookPayload{
		Event:     event,
		Timestamp: n.now().UTC(),
		Data:      JobData{Job: core.JobView(job)},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode webhook payload")
		return
	}

	// Every target gets its own goroutine.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, t := range targets {
		g.Go(func() error {
			start := time.Now()
			if err := n.send(gctx, t, event, body); err != nil {
				log.Warn().Err(err).Str("url", t.url).Dur("elapsed", time.Since(start)).Msg("webhook delivery failed")
			} else {
				log.Debug().Str("url", t.url).Dur("elapsed", time.Since(start)).Msg("webhook delivered")
			}

			if t.webhookID != "" {
				if err := n.store.Webhooks.MarkTriggered(gctx, t.webhookID, n.now()); err != nil {
					log.Warn().Err(err).Str("webhook_id", t.webhookID).Msg("failed to record webhook trigger")
				}
			}
			// Delivery errors never cancel sibling deliveries.
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) targets(ctx context.Context, event string, job *db.PrintJob) ([]target, error) {
	hooks, err := n.store.Webhooks.ListActiveForEvent(ctx, job.ClientID, event)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(hooks)+1)
	for _, h := range hooks {
		targets = append(targets, target{webhookID: h.ID, url: h.URL, secret: h.Secret})
	}
	if job.WebhookURL != "" {
		targets = append(targets, target{url: job.WebhookURL})
	}
	return targets, nil
}

func (n *Notifier) send(ctx context.Context, t target, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event)
	if t.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, t.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 of the exact bytes.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature header in constant time.
func Verify(body []byte, secret, header string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}
