package watermillx

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v4/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewGoChannel returns an in-process broker. Messages are lost on restart.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}

// NewSQLPublisher publishes to the Postgres message tables of the watermill
// default schema.
func NewSQLPublisher(conn *pgxpool.Pool, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := watermillSQL.NewPublisher(
		watermillSQL.BeginnerFromPgx(conn),
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	return publisher, nil
}

type SQLSubscriberArgs struct {
	ConsumerGroup string
	// PollInterval defaults to the watermill-sql default when zero.
	PollInterval time.Duration
}

func NewSQLSubscriber(conn *pgxpool.Pool, args SQLSubscriberArgs, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	subscriber, err := watermillSQL.NewSubscriber(
		watermillSQL.BeginnerFromPgx(conn),
		watermillSQL.SubscriberConfig{
			ConsumerGroup:  args.ConsumerGroup,
			SchemaAdapter:  watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter: watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			PollInterval:   args.PollInterval,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}
	return subscriber, nil
}

// InitializeSchema creates the message and offset tables of every topic.
func InitializeSchema(_ context.Context, conn *pgxpool.Pool, logger watermill.LoggerAdapter, topics ...string) error {
	subscriber, err := watermillSQL.NewSubscriber(
		watermillSQL.BeginnerFromPgx(conn),
		watermillSQL.SubscriberConfig{
			SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer subscriber.Close()

	for _, topic := range topics {
		if err := subscriber.SubscribeInitialize(topic); err != nil {
			return fmt.Errorf("failed to initialize schema for %s: %w", topic, err)
		}
	}

	return nil
}

// NewRouter returns a router that recovers handler panics and retries failed
// handlers a few times before nacking.
func NewRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	router.AddMiddleware(
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			Multiplier:      2,
			Logger:          logger,
		}.Middleware,
		middleware.Recoverer,
	)

	return router, nil
}
