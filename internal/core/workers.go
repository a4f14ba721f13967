package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

type WorkerService struct {
	store    *db.Store
	cache    *freecache.Cache
	cacheTTL int
	now      func() time.Time
}

// NewWorkerService caches successful credential checks for cacheTTL. A zero
// TTL disables the cache.
func NewWorkerService(store *db.Store, cacheSize int, cacheTTL time.Duration) *WorkerService {
	s := &WorkerService{store: store, now: time.Now}
	if cacheTTL > 0 && cacheSize > 0 {
		s.cache = freecache.NewCache(cacheSize)
		s.cacheTTL = int(cacheTTL / time.Second)
		if s.cacheTTL < 1 {
			s.cacheTTL = 1
		}
	}
	return s
}

// Register creates a worker and returns its one-time credential in the form
// "<worker-id>.<secret>".
func (s *WorkerService) Register(ctx context.Context, name string) (*db.Worker, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("worker name is required")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash secret: %w", err)
	}

	w := &db.Worker{
		ID:             uuid.NewString(),
		Name:           name,
		CredentialHash: string(hash),
		Status:         protocol.WorkerOffline,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Workers.CreateWorker(ctx, w); err != nil {
		return nil, "", err
	}

	return w, w.ID + "." + secret, nil
}

// Authenticate resolves a worker credential to its worker id.
func (s *WorkerService) Authenticate(ctx context.Context, credential string) (string, error) {
	id, secret, ok := strings.Cut(credential, ".")
	if !ok || id == "" || secret == "" {
		return "", ErrInvalidCredential
	}

	key := cacheKey(credential)
	if s.cache != nil {
		if v, err := s.cache.Get(key); err == nil {
			return string(v), nil
		}
	}

	w, err := s.store.Workers.GetWorkerByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredential
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.CredentialHash), []byte(secret)); err != nil {
		return "", ErrInvalidCredential
	}

	if s.cache != nil {
		if err := s.cache.Set(key, []byte(w.ID), s.cacheTTL); err != nil {
			logger.FromContext(ctx).Debug().Err(err).Msg("credential cache set failed")
		}
	}
	return w.ID, nil
}

func cacheKey(credential string) []byte {
	sum := sha256.Sum256([]byte(credential))
	return sum[:]
}

// Heartbeat marks the worker online and refreshes its last heartbeat.
func (s *WorkerService) Heartbeat(ctx context.Context, workerID string) error {
	if err := s.store.Workers.RecordHeartbeat(ctx, workerID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWorkerNotFound
		}
		return err
	}
	return nil
}
