// Package testutil holds shared helpers for tests that need a live
// Redis instance. Tests are skipped, not failed, when none is
// reachable.
package testutil

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// RedisInit connects to the Redis named by TEST_REDIS_ADDR (default
// localhost:6379), skipping the test when it is unreachable. The
// returned cleanup flushes every chat:* key and closes the client.
func RedisInit(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	cleanupKeys(ctx, client)

	cleanup := func() {
		cleanupKeys(ctx, client)
		client.Close()
	}

	return client, cleanup
}

func cleanupKeys(ctx context.Context, client *redis.Client) {
	var cursor uint64
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, "chat:*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
}
