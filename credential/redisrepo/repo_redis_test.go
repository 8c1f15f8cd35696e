package redisrepo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-signin/credential"
	"github.com/jrsteele09/go-signin/credential/redisrepo"
	"github.com/jrsteele09/go-signin/credential/repotest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRepo(t *testing.T) {
	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	repotest.RunRepoTests(t, func(t *testing.T) credential.Repo {
		prefix := "signin:test:" + uuid.NewString() + ":"
		t.Cleanup(func() {
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		r, err := redisrepo.New(redisrepo.Config{Client: client, KeyPrefix: prefix})
		require.NoError(t, err)
		return r
	})
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := redisrepo.New(redisrepo.Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis client is required")
}
