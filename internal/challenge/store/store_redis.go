package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"checkout/internal/challenge/models"
	"checkout/pkg/platform/sentinel"
)

var (
	updateDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_challenge_session_update_duration_ms",
		Help:    "Latency of optimistic challenge session updates in milliseconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})
	updateConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_challenge_session_update_conflicts_total",
		Help: "WATCH conflicts observed while updating challenge sessions",
	})
)

const (
	sessionKeyPrefix = "challenge:session:"

	// DefaultMaxRetries bounds optimistic retries after a WATCH conflict.
	DefaultMaxRetries = 5
)

// RedisStore shares challenge sessions across instances. Updates use
// WATCH/MULTI so two instances stepping the same session never lose a write.
type RedisStore struct {
	client     *redis.Client
	retention  time.Duration
	maxRetries int
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisRetention overrides how long expired sessions are kept.
func WithRedisRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.retention = d
	}
}

// WithMaxRetries overrides the WATCH retry budget.
func WithMaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		retention:  DefaultRetention,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// ttl keeps the key until the session's retention window closes.
func (s *RedisStore) ttl(session *models.Session) time.Duration {
	if session.ExpiresAt.IsZero() {
		return s.retention
	}
	d := time.Until(session.ExpiresAt) + s.retention
	if d < time.Second {
		return time.Second
	}
	return d
}

// Create stores a new session. SETNX rejects duplicate ids.
func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal challenge session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), data, s.ttl(session)).Result()
	if err != nil {
		return fmt.Errorf("create challenge session: %w", err)
	}
	if !ok {
		return fmt.Errorf("challenge session %s: %w", session.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	return decodeSession(id, raw, err)
}

func decodeSession(id string, raw []byte, err error) (*models.Session, error) {
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge session %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read challenge session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode challenge session %s: %w", id, err)
	}
	return &session, nil
}

// Update reads, mutates and writes the session inside a WATCH transaction,
// retrying on conflict up to the configured budget. If fn returns an error
// nothing is written.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	start := time.Now()
	defer func() {
		updateDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	key := sessionKey(id)
	var result *models.Session
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		session, err := decodeSession(id, raw, err)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		session.Version++
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal challenge session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl(session))
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			updateConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("challenge session %s: %w", id, sentinel.ErrConflict)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete challenge session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("challenge session %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
