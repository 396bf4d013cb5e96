package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis persists standings in a redis hash per (mode, player). Both sides of
// a result are applied in one pipeline so a crash between them cannot skew
// the ledger.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisWithClient wraps an existing client; test seam.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func rankKey(mode string, uid int64) string {
	return fmt.Sprintf("rank:%s:%d", mode, uid)
}

func (r *Redis) RecordResult(ctx context.Context, mode string, winner, loser int64) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, rankKey(mode, winner), "wins", 1)
	pipe.HIncrBy(ctx, rankKey(mode, loser), "losses", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger: record result: %w", err)
	}
	return nil
}

// Standing reads a player's record for one mode.
func (r *Redis) Standing(ctx context.Context, mode string, uid int64) (Record, error) {
	values, err := r.client.HGetAll(ctx, rankKey(mode, uid)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("ledger: read standing: %w", err)
	}

	var rec Record
	if raw, ok := values["wins"]; ok {
		rec.Wins, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := values["losses"]; ok {
		rec.Losses, _ = strconv.ParseInt(raw, 10, 64)
	}
	return rec, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
