package taskx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gitlab.com/ucmsv2/ctxprop/pkg/postgres"
)

const defaultPollInterval = 50 * time.Millisecond

// PostgresBackend keeps results in the task_results table. It pairs with the
// SQL broker so a deployment needs nothing but Postgres.
type PostgresBackend struct {
	pool         *pgxpool.Pool
	ttl          time.Duration
	pollInterval time.Duration
}

type PostgresBackendArgs struct {
	Pool *pgxpool.Pool
	// TTL bounds how long an unclaimed result is kept. Expired rows are
	// purged on Store.
	TTL          time.Duration
	PollInterval time.Duration
}

func NewPostgresBackend(args PostgresBackendArgs) *PostgresBackend {
	if args.Pool == nil {
		panic("taskx: postgres pool is required")
	}
	if args.TTL <= 0 {
		args.TTL = defaultResultTTL
	}
	if args.PollInterval <= 0 {
		args.PollInterval = defaultPollInterval
	}

	return &PostgresBackend{
		pool:         args.Pool,
		ttl:          args.TTL,
		pollInterval: args.PollInterval,
	}
}

func (b *PostgresBackend) Store(ctx context.Context, result Result) error {
	const op = "taskx.PostgresBackend.Store"

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	err = postgres.WithTx(ctx, b.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM task_results WHERE created_at < now() - make_interval(secs => $1)`,
			b.ttl.Seconds(),
		); err != nil {
			return fmt.Errorf("purge expired: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO task_results (id, task, payload) VALUES ($1, $2, $3)`,
			result.TaskID, result.Task, payload,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w: task %s", op, ErrResultStored, result.TaskID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Wait polls for the row of id and deletes it when found.
func (b *PostgresBackend) Wait(ctx context.Context, id string) (Result, error) {
	const op = "taskx.PostgresBackend.Wait"

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		var payload []byte
		err := b.pool.QueryRow(ctx, `DELETE FROM task_results WHERE id = $1 RETURNING payload`, id).Scan(&payload)
		switch {
		case err == nil:
			var result Result
			if err := json.Unmarshal(payload, &result); err != nil {
				return Result{}, fmt.Errorf("%s: decode: %w", op, err)
			}
			return result, nil
		case errors.Is(err, pgx.ErrNoRows):
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
