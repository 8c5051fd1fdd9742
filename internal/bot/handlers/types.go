// Package handlers defines the update pipeline contract shared by the bot and its middlewares.
package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Request is one inbound Telegram update travelling through the pipeline.
type Request struct {
	Update  telebot.Update
	Message *telebot.Message
	// Action is a low-cardinality label for metrics: a known command or the message type.
	Action string
}

// UserID returns the Telegram id of the sender, or 0 when unknown.
func (r *Request) UserID() int64 {
	if r == nil || r.Message == nil || r.Message.Sender == nil {
		return 0
	}
	return r.Message.Sender.ID
}

// Handler processes a single update.
type Handler func(ctx context.Context, req *Request) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Chain wraps h so that the first middleware runs outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	if h == nil {
		return nil
	}

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}
