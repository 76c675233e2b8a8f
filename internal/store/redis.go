package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/johndosdos/relay/internal/model"
)

// RedisStore keeps the registry and message log in Redis, using the
// store's own atomic primitives (SADD, HSET/HDEL, LPUSH+LTRIM) so
// that concurrent handlers never need in-process locking.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an already-configured client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// unavailable maps any Redis failure onto the transient
// ErrStoreUnavailable condition, keeping the cause in the message.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// Claim relies on SADD's add-if-absent semantics as the
// serialization point: of two connections racing for one name,
// exactly one sees the member count change. A plain SISMEMBER check
// followed by SADD would let both through.
func (s *RedisStore) Claim(ctx context.Context, connID uuid.UUID, username string) (bool, error) {
	added, err := s.client.SAdd(ctx, KeyOnlineUsers, username).Result()
	if err != nil {
		return false, unavailable("claim username", err)
	}
	if added == 0 {
		return false, nil
	}

	if err := s.client.HSet(ctx, KeyBindings, connID.String(), username).Err(); err != nil {
		// Undo the set insert so the name doesn't leak without a
		// binding. Best effort; a failure here leaves the name
		// claimed until the store recovers.
		if delErr := s.client.SRem(ctx, KeyOnlineUsers, username).Err(); delErr != nil {
			log.Printf("[error] failed to roll back claim of %q: %v", username, delErr)
		}
		return false, unavailable("bind connection", err)
	}

	return true, nil
}

func (s *RedisStore) Release(ctx context.Context, connID uuid.UUID) (string, error) {
	username, err := s.client.HGet(ctx, KeyBindings, connID.String()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", unavailable("lookup binding", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, KeyBindings, connID.String())
	pipe.SRem(ctx, KeyOnlineUsers, username)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", unavailable("release binding", err)
	}

	return username, nil
}

func (s *RedisStore) Lookup(ctx context.Context, connID uuid.UUID) (string, error) {
	username, err := s.client.HGet(ctx, KeyBindings, connID.String()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", unavailable("lookup binding", err)
	}
	return username, nil
}

func (s *RedisStore) Usernames(ctx context.Context) ([]string, error) {
	users, err := s.client.HVals(ctx, KeyBindings).Result()
	if err != nil {
		return nil, unavailable("list usernames", err)
	}
	return users, nil
}

// Append pushes to the head and trims in one MULTI/EXEC pipeline, so
// no observer sees the list above HistoryLimit entries persist.
func (s *RedisStore) Append(ctx context.Context, msg model.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, KeyMessages, raw)
	pipe.LTrim(ctx, KeyMessages, 0, HistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("append message", err)
	}

	return nil
}

// Recent reverses the newest-first storage order before returning.
func (s *RedisStore) Recent(ctx context.Context) ([]model.Message, error) {
	raw, err := s.client.LRange(ctx, KeyMessages, 0, -1).Result()
	if err != nil {
		return nil, unavailable("load history", err)
	}

	messages := make([]model.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg model.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			log.Printf("[error] skipping undecodable history entry: %v", err)
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
