package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures a custom IOHandler.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithConversationID sets the conversation the chat runs under.
func WithConversationID(id string) Option {
	return func(r *Runner) {
		r.conversationID = id
	}
}

// WithUser sets the identity sent with every message.
func WithUser(id, name string) Option {
	return func(r *Runner) {
		r.userID = id
		r.userName = name
	}
}

// WithSessionData seeds the variables of every new session.
func WithSessionData(data map[string]any) Option {
	return func(r *Runner) {
		r.sessionData = data
	}
}

// WithExitOnEnd stops Run when the flow ends the session.
func WithExitOnEnd(exit bool) Option {
	return func(r *Runner) {
		r.exitOnEnd = exit
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}
