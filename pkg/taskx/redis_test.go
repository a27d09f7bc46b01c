package taskx

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisBackendSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func TestRedisBackendSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	suite.Run(t, new(RedisBackendSuite))
}

func (s *RedisBackendSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())
}

func (s *RedisBackendSuite) TearDownSuite() {
	if s.client != nil {
		s.Require().NoError(s.client.Close())
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *RedisBackendSuite) backend() *RedisBackend {
	return NewRedisBackend(RedisBackendArgs{
		Client:      s.client,
		TTL:         time.Minute,
		PollTimeout: 100 * time.Millisecond,
	})
}

func (s *RedisBackendSuite) TestStoreThenWait() {
	ctx := s.T().Context()
	backend := s.backend()

	s.Require().NoError(backend.Store(ctx, successResult("r1", "hello", "ru/Europe/Moscow/ivan")))

	ttl, err := s.client.TTL(ctx, "taskx:result:r1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)

	got, err := backend.Wait(ctx, "r1")
	s.Require().NoError(err)
	s.Equal(StatusSuccess, got.Status)
	s.Equal("hello", got.Task)
	s.Equal("ru/Europe/Moscow/ivan", got.Value)
}

func (s *RedisBackendSuite) TestWaitBlocksUntilStored() {
	ctx := s.T().Context()
	backend := s.backend()

	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = backend.Store(context.Background(), failureResult("r2", "hello", context.DeadlineExceeded))
	}()

	res := &AsyncResult{ID: "r2", Task: "hello", backend: backend}
	_, err := res.Get(ctx)

	var taskErr *TaskError
	s.Require().ErrorAs(err, &taskErr)
	s.Equal("r2", taskErr.ID)
	s.Contains(taskErr.Message, "deadline exceeded")
}

func (s *RedisBackendSuite) TestWaitHonoursContext() {
	ctx, cancel := context.WithTimeout(s.T().Context(), 250*time.Millisecond)
	defer cancel()

	_, err := s.backend().Wait(ctx, "never")
	s.ErrorIs(err, context.DeadlineExceeded)
}
