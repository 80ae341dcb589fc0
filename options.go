package botflow

import (
	"log/slog"
	"time"

	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/session"
)

// DefaultApology is returned to the user whenever processing fails.
const DefaultApology = "Sorry, something went wrong on our side. Please try again in a moment."

// Option defines a functional option for configuring a Bot.
type Option func(*Bot)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithSessionManager shares a session manager (and its locks) between bots.
// The manager's store takes precedence over WithStore.
func WithSessionManager(m *session.Manager) Option {
	return func(b *Bot) {
		b.sessions = m
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithMaxIterations sets the auto-chain ceiling (default 25).
func WithMaxIterations(n int) Option {
	return engineOption(runtime.WithMaxIterations(n))
}

// WithMaxDelay caps delay nodes (default 10s).
func WithMaxDelay(d time.Duration) Option {
	return engineOption(runtime.WithMaxDelay(d))
}

// WithMaxHTTPTimeout caps http_request timeouts (default 10s).
func WithMaxHTTPTimeout(d time.Duration) Option {
	return engineOption(runtime.WithMaxHTTPTimeout(d))
}

// WithAITimeout bounds ai_response calls (default 30s).
func WithAITimeout(d time.Duration) Option {
	return engineOption(runtime.WithAITimeout(d))
}

// WithAIDefaults sets model, temperature and token defaults for ai_response nodes.
func WithAIDefaults(model string, temperature float32, maxTokens int) Option {
	return engineOption(runtime.WithAIDefaults(runtime.AIDefaults{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}))
}

// WithHTTPClient sets the client used by http_request nodes.
func WithHTTPClient(c ports.HTTPDoer) Option {
	return engineOption(runtime.WithHTTPClient(c))
}

// WithCompletionProvider enables ai_response nodes.
func WithCompletionProvider(p ports.CompletionProvider) Option {
	return engineOption(runtime.WithCompletionProvider(p))
}

// WithDepartments sets the directory used by routing ai_response nodes.
func WithDepartments(d ports.DepartmentDirectory) Option {
	return engineOption(runtime.WithDepartments(d))
}

// WithNotifier delivers interim messages of ai_response nodes.
func WithNotifier(n ports.Notifier) Option {
	return engineOption(runtime.WithNotifier(n))
}

// WithStrictCycles makes Initialize reject flows whose stages can auto-chain
// into each other forever.
func WithStrictCycles() Option {
	return func(b *Bot) {
		b.strictCycles = true
	}
}

// WithApology overrides the message returned when processing fails.
func WithApology(text string) Option {
	return func(b *Bot) {
		b.apology = text
	}
}

// WithMaxInputSize sets the inbound text limit in bytes.
func WithMaxInputSize(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.maxInput = n
		}
	}
}

func engineOption(opt runtime.EngineOption) Option {
	return func(b *Bot) {
		b.engineOpts = append(b.engineOpts, opt)
	}
}
