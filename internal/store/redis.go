package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kgr0831/relay/internal/roomcore"
)

// Redis is the hot-path Store backend: patch history as a list per room
// that is never trimmed (the key only expires after ttl without writes),
// queue snapshots as a single key per (room, lang). Grounded on the
// teacher's redisClient.AddTranscript/GetTranscripts usage in
// internal/handler/room_hub.go, generalized from a transcript-only log to
// the store contract's two record kinds.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis store against addr. ttl bounds how long patch
// history and queue snapshots survive without being refreshed.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func historyKey(roomID string) string { return "relay:history:" + roomID }
func queueKey(roomID, lang string) string { return "relay:queue:" + roomID + ":" + lang }

type patchEnvelope struct {
	Patch      roomcore.EgressPatch `json:"patch"`
	RecordedAt int64                `json:"recordedAt"`
}

func (r *Redis) AppendPatch(ctx context.Context, roomID string, patch roomcore.EgressPatch) error {
	payload, err := json.Marshal(patchEnvelope{Patch: patch, RecordedAt: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	key := historyKey(roomID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("append patch history: %w", err)
	}
	return nil
}

func (r *Redis) PatchHistory(ctx context.Context, roomID string, since time.Time) ([]roomcore.EgressPatch, error) {
	raw, err := r.client.LRange(ctx, historyKey(roomID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read patch history: %w", err)
	}
	cutoff := since.UnixMilli()
	out := make([]roomcore.EgressPatch, 0, len(raw))
	for _, item := range raw {
		var env patchEnvelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			continue
		}
		if env.RecordedAt > cutoff {
			out = append(out, env.Patch)
		}
	}
	return out, nil
}

func (r *Redis) SaveQueueState(ctx context.Context, roomID, lang string, items []QueueItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal queue state: %w", err)
	}
	key := queueKey(roomID, lang)
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save queue state: %w", err)
	}
	return nil
}

func (r *Redis) LoadQueueState(ctx context.Context, roomID, lang string) ([]QueueItem, error) {
	raw, err := r.client.Get(ctx, queueKey(roomID, lang)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	var items []QueueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal queue state: %w", err)
	}
	return items, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
