package botflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/session"
)

var (
	errNotInitialized = errors.New("bot not initialized")
	errPanic          = errors.New("panic during message processing")
)

// ErrAutoChainCycle is returned by Initialize under WithStrictCycles.
var ErrAutoChainCycle = compiler.ErrAutoChainCycle

// Bot is one compiled flow bound to a session store.
// It is safe for concurrent use; messages of one conversation are serialized.
type Bot struct {
	id  string
	def *domain.FlowDefinition

	store        ports.SessionStore
	sessions     *session.Manager
	engineOpts   []runtime.EngineOption
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	strictCycles bool
	apology      string
	maxInput     int

	mu       sync.RWMutex
	engine   *runtime.Engine
	disposed bool
}

// New creates a bot for def. Call Initialize before processing messages.
func New(id string, def *domain.FlowDefinition, opts ...Option) *Bot {
	b := &Bot{
		id:      id,
		def:     def,
		apology: DefaultApology,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	b.logger = b.logger.With("bot_id", id)
	if b.sessions == nil {
		if b.store == nil {
			b.store = memory.NewStore()
		}
		b.sessions = session.NewManager(b.store, session.WithLogger(b.logger))
	}
	b.store = b.sessions.Store()
	return b
}

// ID returns the bot id.
func (b *Bot) ID() string {
	return b.id
}

// Definition returns the flow the bot was created with.
func (b *Bot) Definition() *domain.FlowDefinition {
	return b.def
}

// Initialize compiles the flow. Compilation errors (domain.ErrMissingStartNode,
// domain.ErrMalformedGraph) are returned so a registry never caches a broken bot.
func (b *Bot) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return domain.ErrDisposed
	}
	if b.engine != nil {
		return nil
	}

	program, err := compiler.Compile(b.def)
	if err != nil {
		return fmt.Errorf("compile flow %s: %w", b.id, err)
	}
	if b.strictCycles {
		if err := compiler.CheckAutoChainCycles(program); err != nil {
			return fmt.Errorf("compile flow %s: %w", b.id, err)
		}
	}

	opts := []runtime.EngineOption{
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(b.hooks),
		runtime.WithSessionTTL(b.def.Timeout()),
	}
	b.engine = runtime.NewEngine(b.id, program, b.store, append(opts, b.engineOpts...)...)
	b.logger.Debug("Flow compiled", "stages", len(program.StageIDs()), "entry", program.Entry())
	return nil
}

// Dispose releases the compiled flow. Further messages return domain.ErrDisposed.
func (b *Bot) Dispose(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.engine = nil
	return nil
}

func (b *Bot) current() (*runtime.Engine, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.disposed {
		return nil, domain.ErrDisposed
	}
	if b.engine == nil {
		return nil, errNotInitialized
	}
	return b.engine, nil
}

// ProcessMessage runs one inbound message through the flow.
//
// Processing failures never reach the channel: they are logged and answered
// with the apology message. An error is returned only when the bot cannot take
// messages at all (not initialized or disposed).
func (b *Bot) ProcessMessage(ctx context.Context, msg domain.MessageContext) (*domain.StageResponse, error) {
	engine, err := b.current()
	if err != nil {
		return nil, err
	}
	msg.BotID = b.id

	log := b.logger.With("conversation_id", msg.ConversationID)

	text, err := SanitizeInput(msg.Text, b.maxInput)
	if err != nil {
		log.Warn("Inbound message rejected", "err", err)
		return b.apologize(), nil
	}
	msg.Text = text

	var resp *domain.StageResponse
	err = b.sessions.WithLock(ctx, msg.Key(), func(ctx context.Context) (err error) {
		// Host collaborators such as HTTPDoer may panic.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()
		resp, err = engine.Execute(ctx, msg)
		return err
	})
	if err != nil {
		attrs := []any{"err", err}
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			attrs = append(attrs, "stage", stageErr.Stage, "node_id", stageErr.NodeID)
		}
		log.Error("Message processing failed", attrs...)
		return b.apologize(), nil
	}
	return resp, nil
}

func (b *Bot) apologize() *domain.StageResponse {
	return &domain.StageResponse{Message: b.apology}
}

// EndSession deactivates the conversation's session, waiting for any message in flight.
func (b *Bot) EndSession(ctx context.Context, conversationID string) error {
	return b.sessions.End(ctx, domain.SessionKey{ConversationID: conversationID, BotID: b.id})
}

// AddStage registers an extra stage at runtime.
func (b *Bot) AddStage(node domain.Node, edges ...domain.Edge) (domain.StageID, error) {
	engine, err := b.current()
	if err != nil {
		return domain.NoStage, err
	}
	return engine.Program().AddStage(node, edges...)
}

// RemoveStage unregisters a stage. The entry stage cannot be removed.
func (b *Bot) RemoveStage(id domain.StageID) bool {
	engine, err := b.current()
	if err != nil {
		return false
	}
	return engine.Program().RemoveStage(id)
}

// GetStage returns the node behind a stage address.
func (b *Bot) GetStage(id domain.StageID) (domain.Node, bool) {
	engine, err := b.current()
	if err != nil {
		return domain.Node{}, false
	}
	s, ok := engine.Program().Stage(id)
	if !ok {
		return domain.Node{}, false
	}
	return s.Node, true
}

// HasStage reports whether a stage address exists.
func (b *Bot) HasStage(id domain.StageID) bool {
	engine, err := b.current()
	if err != nil {
		return false
	}
	return engine.Program().HasStage(id)
}

// StageIDs lists the available stage addresses in ascending order.
func (b *Bot) StageIDs() []domain.StageID {
	engine, err := b.current()
	if err != nil {
		return nil
	}
	return engine.Program().StageIDs()
}
