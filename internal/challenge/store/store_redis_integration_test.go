//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"checkout/internal/challenge/models"
	"checkout/internal/challenge/store"
	pidl "checkout/internal/pidl/models"
	"checkout/pkg/platform/sentinel"
	"checkout/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client, store.WithMaxRetries(100))
}

func (s *RedisStoreSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func makeSession(attempts int) *models.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Session{
		ID:    uuid.NewString(),
		Type:  models.TypeOTP,
		State: models.StatePending,
		Methods: []pidl.ChallengeMethod{
			{ID: "sms", Type: "sms", Destination: "+1-555-0000"},
			{ID: "email", Type: "email", Destination: "target@domain.com"},
		},
		SelectedMethod:    "email",
		RemainingAttempts: attempts,
		Partner:           "cart",
		Country:           "us",
		Language:          "en-us",
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(10 * time.Minute),
	}
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	session := makeSession(3)
	s.Require().NoError(s.store.Create(ctx, session))

	found, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session, found)

	s.ErrorIs(s.store.Create(ctx, session), sentinel.ErrConflict)
	s.Require().NoError(s.store.Delete(ctx, session.ID))
	_, err = s.store.Get(ctx, session.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentUpdatesNeverLoseWrites hammers one session from many
// goroutines; WATCH retries must apply every decrement exactly once.
func (s *RedisStoreSuite) TestConcurrentUpdatesNeverLoseWrites() {
	ctx := context.Background()
	const goroutines = 20
	session := makeSession(goroutines)
	s.Require().NoError(s.store.Create(ctx, session))

	var wg sync.WaitGroup
	var failures atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Update(ctx, session.ID, func(sess *models.Session) error {
				sess.RemainingAttempts--
				return nil
			})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	found, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(0, found.RemainingAttempts)
	s.Equal(int64(goroutines), found.Version)
}

// TestMutationErrorRollsBack verifies a failing mutation leaves the stored
// session untouched.
func (s *RedisStoreSuite) TestMutationErrorRollsBack() {
	ctx := context.Background()
	session := makeSession(3)
	s.Require().NoError(s.store.Create(ctx, session))

	boom := errors.New("boom")
	_, err := s.store.Update(ctx, session.ID, func(sess *models.Session) error {
		sess.State = models.StateExpired
		return boom
	})
	s.ErrorIs(err, boom)

	found, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePending, found.State)
}

// TestTTLTracksExpiry verifies the key outlives the session deadline by the
// retention window and that updates keep it.
func (s *RedisStoreSuite) TestTTLTracksExpiry() {
	ctx := context.Background()
	session := makeSession(3)
	s.Require().NoError(s.store.Create(ctx, session))

	key := "challenge:session:" + session.ID
	initial, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(initial, 10*time.Minute)

	_, err = s.store.Update(ctx, session.ID, func(sess *models.Session) error {
		sess.RemainingAttempts--
		return nil
	})
	s.Require().NoError(err)

	after, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta(initial.Seconds(), after.Seconds(), 5.0)
}
