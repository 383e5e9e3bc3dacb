package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/redis"
)

var (
	_ storage.StatusRepository = &redis.StatusRepository{}
	_ storage.StatusSwapper    = &redis.StatusRepository{}
)

func newRepo(t *testing.T, ttl time.Duration) (*redis.StatusRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := redis.NewStatusRepository(redis.StatusRepositoryConfig{
		Client:        client,
		ProcessingTTL: ttl,
		Logger:        log.Noop,
	})
	require.NoError(t, err)
	return repo, mr
}

func TestStatusRepositorySwap(t *testing.T) {
	tests := map[string]struct {
		initial   string
		from, to  model.SessionStatus
		expSwap   bool
		expStatus model.SessionStatus
	}{
		"A missing key should be swapped from idle.": {
			from:      model.SessionStatusIdle,
			to:        model.SessionStatusProcessing,
			expSwap:   true,
			expStatus: model.SessionStatusProcessing,
		},
		"A processing session should not be swapped from idle.": {
			initial:   "processing",
			from:      model.SessionStatusIdle,
			to:        model.SessionStatusProcessing,
			expSwap:   false,
			expStatus: model.SessionStatusProcessing,
		},
		"A processing session should be swapped to idle.": {
			initial:   "processing",
			from:      model.SessionStatusProcessing,
			to:        model.SessionStatusIdle,
			expSwap:   true,
			expStatus: model.SessionStatusIdle,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, mr := newRepo(t, 0)
			if test.initial != "" {
				require.NoError(mr.Set(redis.DefaultPrefix+"proj-1", test.initial))
			}

			swapped, err := repo.SwapStatus(context.Background(), "proj-1", test.from, test.to)
			require.NoError(err)
			assert.Equal(test.expSwap, swapped)

			status, err := repo.GetStatus(context.Background(), "proj-1")
			require.NoError(err)
			assert.Equal(test.expStatus, status)
		})
	}
}

func TestStatusRepositoryProcessingTTL(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	repo, mr := newRepo(t, time.Minute)

	require.NoError(repo.SetStatus(ctx, "proj-1", model.SessionStatusProcessing))
	assert.Equal(time.Minute, mr.TTL(redis.DefaultPrefix+"proj-1"))

	mr.FastForward(2 * time.Minute)
	status, err := repo.GetStatus(ctx, "proj-1")
	require.NoError(err)
	assert.Equal(model.SessionStatusIdle, status)

	require.NoError(repo.SetStatus(ctx, "proj-1", model.SessionStatusIdle))
	assert.Equal(time.Duration(0), mr.TTL(redis.DefaultPrefix+"proj-1"))
}

func TestStatusRepositoryUnavailable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	repo, err := redis.NewStatusRepository(redis.StatusRepositoryConfig{Client: client})
	require.NoError(t, err)

	_, err = repo.GetStatus(context.Background(), "proj-1")
	assert.Error(t, err)

	_, err = repo.SwapStatus(context.Background(), "proj-1", model.SessionStatusIdle, model.SessionStatusProcessing)
	assert.Error(t, err)
}
