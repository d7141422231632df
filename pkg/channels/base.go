// Package channels renders the chat widget: in a browser, in a full-screen terminal
// UI, or as a plain line-mode console.
package channels

import (
	"context"
	"sync/atomic"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/dispatcher"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// Backend is everything a front-end asks of the chatbot API. *chatbot.Client implements it.
type Backend interface {
	dispatcher.Backend
	widget.QuestionSource
}

type BaseChannel struct {
	name    string
	running atomic.Bool
}

func NewBaseChannel(name string) *BaseChannel {
	return &BaseChannel{name: name}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
