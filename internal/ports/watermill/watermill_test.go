package watermill

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/text/language"

	ctxprop "gitlab.com/ucmsv2/ctxprop"
	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/env"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
	"gitlab.com/ucmsv2/ctxprop/pkg/postgres"
	"gitlab.com/ucmsv2/ctxprop/pkg/taskx"
	"gitlab.com/ucmsv2/ctxprop/pkg/watermillx"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newStore(t *testing.T) *ctxs.Store {
	t.Helper()

	store, err := ctxs.NewStore(ctxs.Args{
		DefaultLanguage: "en",
		DefaultTimezone: "Asia/Shanghai",
		Languages:       []string{"en", "zh-Hans", "ru"},
	})
	require.NoError(t, err)
	return store
}

func newHello(t *testing.T, store *ctxs.Store, tasks *taskx.App) *hello.App {
	t.Helper()

	bundle, err := i18nx.NewBundle(language.English)
	require.NoError(t, err)
	return hello.NewApp(hello.Args{
		Store:  store,
		Bundle: bundle,
		Tasks:  tasks,
		Now:    func() time.Time { return fixedNow },
	})
}

func runRouter(t *testing.T, router *message.Router) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(context.Background())
	}()
	t.Cleanup(func() {
		assert.NoError(t, router.Close())
		<-done
	})

	select {
	case <-router.Running():
	case <-time.After(10 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestNewPort_RequiresDependencies(t *testing.T) {
	router, err := watermillx.NewRouter(watermill.NopLogger{})
	require.NoError(t, err)

	_, err = NewPort(nil, watermillx.NewGoChannel(watermill.NopLogger{}))
	assert.Error(t, err)
	_, err = NewPort(router, nil)
	assert.Error(t, err)

	port, err := NewPort(router, watermillx.NewGoChannel(watermill.NopLogger{}))
	require.NoError(t, err)
	assert.Error(t, port.Run(context.Background(), AppTaskHandlers{}))
}

func TestPort_GoChannel(t *testing.T) {
	logger := watermillx.NewSlogLogger(slog.Default(), slog.LevelWarn)
	pubSub := watermillx.NewGoChannel(logger)
	t.Cleanup(func() { _ = pubSub.Close() })

	store := newStore(t)
	tasks := taskx.NewApp(taskx.Args{Store: store, Publisher: pubSub})
	app := newHello(t, store, tasks)

	router, err := watermillx.NewRouter(logger)
	require.NoError(t, err)
	port, err := NewPort(router, pubSub)
	require.NoError(t, err)
	require.NoError(t, port.Run(context.Background(), AppTaskHandlers{Tasks: tasks}))
	runRouter(t, router)

	ctx, err := store.ActivateLanguage(context.Background(), "ru")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	text, err := app.ApplyTaskAsync(ctx, "ivan")
	require.NoError(t, err)
	assert.Contains(t, text, "Привет, ivan!")
	assert.Contains(t, text, "(Asia/Shanghai) 2024-01-02T11:04:05+08:00")
}

type PostgresPortSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
}

func TestPostgresPortSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	suite.Run(t, new(PostgresPortSuite))
}

func (s *PostgresPortSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("ctxprop"),
		tcpostgres.WithUsername("ctxprop"),
		tcpostgres.WithPassword("ctxprop"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(postgres.MigrateDSN(dsn), ctxprop.Migrations))

	s.pool, err = postgres.NewPgxPool(ctx, dsn, env.Test)
	s.Require().NoError(err)
	s.Require().NoError(watermillx.InitializeSchema(ctx, s.pool, watermill.NopLogger{}, taskx.DefaultTopic))
}

func (s *PostgresPortSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresPortSuite) TestApplyAsyncOverSQL() {
	t := s.T()
	logger := watermill.NopLogger{}

	publisher, err := watermillx.NewSQLPublisher(s.pool, logger)
	s.Require().NoError(err)
	subscriber, err := watermillx.NewSQLSubscriber(s.pool, watermillx.SQLSubscriberArgs{
		ConsumerGroup: HandlerName,
		PollInterval:  10 * time.Millisecond,
	}, logger)
	s.Require().NoError(err)

	store := newStore(t)
	tasks := taskx.NewApp(taskx.Args{
		Store:     store,
		Publisher: publisher,
		Results:   taskx.NewPostgresBackend(taskx.PostgresBackendArgs{Pool: s.pool, PollInterval: 10 * time.Millisecond}),
	})
	app := newHello(t, store, tasks)

	router, err := watermillx.NewRouter(logger)
	s.Require().NoError(err)
	port, err := NewPort(router, subscriber)
	s.Require().NoError(err)
	s.Require().NoError(port.Run(context.Background(), AppTaskHandlers{Tasks: tasks}))
	runRouter(t, router)

	ctx, err := store.ActivateTimezone(context.Background(), "Europe/Moscow")
	s.Require().NoError(err)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := app.ApplyTaskAsync(ctx, "bob")
	s.Require().NoError(err)
	s.Contains(text, "Hello, bob!")
	s.Contains(text, "(Europe/Moscow) 2024-01-02T06:04:05+03:00")

	res, err := app.Task.ApplyAsync(ctx, nil, nil)
	s.Require().NoError(err)
	_, err = res.Get(ctx)
	var taskErr *taskx.TaskError
	s.Require().ErrorAs(err, &taskErr)
	s.Equal(hello.TaskName, taskErr.Task)
}

func (s *PostgresPortSuite) TestPostgresBackend() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := taskx.NewPostgresBackend(taskx.PostgresBackendArgs{Pool: s.pool, PollInterval: 10 * time.Millisecond})
	result := taskx.Result{TaskID: "pg-1", Task: "hello", Status: taskx.StatusSuccess, Value: "hi"}

	s.Require().NoError(backend.Store(ctx, result))
	s.ErrorIs(backend.Store(ctx, result), taskx.ErrResultStored)

	got, err := backend.Wait(ctx, "pg-1")
	s.Require().NoError(err)
	s.Equal(result, got)

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	_, err = backend.Wait(short, "pg-1")
	s.ErrorIs(err, context.DeadlineExceeded)
}
