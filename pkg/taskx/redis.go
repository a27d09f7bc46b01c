package taskx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultResultPrefix = "taskx:result:"
	defaultResultTTL    = time.Hour
	defaultPollTimeout  = time.Second
)

// RedisBackend shares results between processes through Redis lists, one
// list per task id.
type RedisBackend struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	pollTimeout time.Duration
}

type RedisBackendArgs struct {
	Client redis.UniversalClient
	Prefix string
	// TTL bounds how long an unclaimed result is kept.
	TTL time.Duration
	// PollTimeout is the BLPOP timeout between context checks.
	PollTimeout time.Duration
}

func NewRedisBackend(args RedisBackendArgs) *RedisBackend {
	if args.Client == nil {
		panic("taskx: redis client is required")
	}
	if args.Prefix == "" {
		args.Prefix = defaultResultPrefix
	}
	if args.TTL <= 0 {
		args.TTL = defaultResultTTL
	}
	if args.PollTimeout <= 0 {
		args.PollTimeout = defaultPollTimeout
	}

	return &RedisBackend{
		client:      args.Client,
		prefix:      args.Prefix,
		ttl:         args.TTL,
		pollTimeout: args.PollTimeout,
	}
}

func (b *RedisBackend) key(id string) string {
	return b.prefix + id
}

func (b *RedisBackend) Store(ctx context.Context, result Result) error {
	const op = "taskx.RedisBackend.Store"

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	key := b.key(result.TaskID)
	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *RedisBackend) Wait(ctx context.Context, id string) (Result, error) {
	const op = "taskx.RedisBackend.Wait"

	key := b.key(id)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		values, err := b.client.BLPop(ctx, b.pollTimeout, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		// BLPOP replies with [key, value].
		if len(values) != 2 {
			return Result{}, fmt.Errorf("%s: unexpected reply of %d elements", op, len(values))
		}

		var result Result
		if err := json.Unmarshal([]byte(values[1]), &result); err != nil {
			return Result{}, fmt.Errorf("%s: decode: %w", op, err)
		}
		return result, nil
	}
}
