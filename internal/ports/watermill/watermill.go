package watermill

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"gitlab.com/ucmsv2/ctxprop/pkg/taskx"
)

// HandlerName is the router handler name of the task worker.
const HandlerName = "taskx.worker"

// Port connects the task registry to a router: messages on the task topic
// are executed by the registry's handler.
type Port struct {
	router     *message.Router
	subscriber message.Subscriber
}

type AppTaskHandlers struct {
	Tasks *taskx.App
}

func NewPort(router *message.Router, subscriber message.Subscriber) (*Port, error) {
	if router == nil {
		return nil, errors.New("watermill port: router is required")
	}
	if subscriber == nil {
		return nil, errors.New("watermill port: subscriber is required")
	}
	return &Port{router: router, subscriber: subscriber}, nil
}

// Run registers the task worker. The router itself is started by the caller.
func (p *Port) Run(_ context.Context, handlers AppTaskHandlers) error {
	if handlers.Tasks == nil {
		return errors.New("watermill port: task registry is required")
	}
	p.router.AddNoPublisherHandler(HandlerName, handlers.Tasks.Topic(), p.subscriber, handlers.Tasks.Handler())
	return nil
}
