// Package runtime executes compiled flows one inbound message at a time.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/condition"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/interpolation"
	"github.com/aretw0/botflow/pkg/ports"
)

// Limits applied when no option overrides them.
const (
	DefaultMaxIterations  = 25
	DefaultMaxDelay       = 10 * time.Second
	DefaultMaxHTTPTimeout = 10 * time.Second
	DefaultAITimeout      = 30 * time.Second
)

// AIDefaults are used for ai_response nodes that leave the field empty.
type AIDefaults struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Engine runs a compiled Program against a SessionStore.
// Execute is not safe for concurrent calls on the same conversation; callers
// serialize per conversation (see session.Manager).
type Engine struct {
	botID   string
	program *compiler.Program
	store   ports.SessionStore

	sessionTTL     time.Duration
	maxIterations  int
	maxDelay       time.Duration
	maxHTTPTimeout time.Duration
	aiTimeout      time.Duration
	aiDefaults     AIDefaults

	http        ports.HTTPDoer
	completions ports.CompletionProvider
	departments ports.DepartmentDirectory
	notifier    ports.Notifier

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	handlers map[domain.NodeType]handler
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxIterations sets the auto-chain ceiling.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithSessionTTL sets the lifetime of sessions created by the engine.
func WithSessionTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.sessionTTL = ttl
	}
}

// WithMaxDelay caps delay nodes.
func WithMaxDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.maxDelay = d
		}
	}
}

// WithMaxHTTPTimeout caps the timeout of http_request nodes.
func WithMaxHTTPTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.maxHTTPTimeout = d
		}
	}
}

// WithAITimeout bounds ai_response calls.
func WithAITimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.aiTimeout = d
		}
	}
}

// WithAIDefaults sets the model parameters used when a node omits them.
func WithAIDefaults(d AIDefaults) EngineOption {
	return func(e *Engine) {
		e.aiDefaults = d
	}
}

// WithHTTPClient sets the client used by http_request nodes.
func WithHTTPClient(c ports.HTTPDoer) EngineOption {
	return func(e *Engine) {
		e.http = c
	}
}

// WithCompletionProvider enables ai_response nodes.
func WithCompletionProvider(p ports.CompletionProvider) EngineOption {
	return func(e *Engine) {
		e.completions = p
	}
}

// WithDepartments sets the directory used by routing ai_response nodes.
func WithDepartments(d ports.DepartmentDirectory) EngineOption {
	return func(e *Engine) {
		e.departments = d
	}
}

// WithNotifier sets the channel used for interim messages.
func WithNotifier(n ports.Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for one bot.
func NewEngine(botID string, program *compiler.Program, store ports.SessionStore, opts ...EngineOption) *Engine {
	e := &Engine{
		botID:          botID,
		program:        program,
		store:          store,
		maxIterations:  DefaultMaxIterations,
		maxDelay:       DefaultMaxDelay,
		maxHTTPTimeout: DefaultMaxHTTPTimeout,
		aiTimeout:      DefaultAITimeout,
		http:           http.DefaultClient,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("bot_id", botID)
	e.handlers = e.handlerTable()
	return e
}

// Program returns the compiled program the engine runs.
func (e *Engine) Program() *compiler.Program {
	return e.program
}

// execution is the per-message state threaded through handlers.
type execution struct {
	msg       domain.MessageContext
	key       domain.SessionKey
	data      map[string]any // local copy of session variables, kept in sync with the store
	iteration int
}

func (x *execution) template() interpolation.Context {
	return interpolation.Context{
		Message:        x.msg.Text,
		Name:           x.msg.UserName,
		UserID:         x.msg.UserID,
		Provider:       x.msg.Provider,
		ConversationID: x.msg.ConversationID,
	}
}

func (x *execution) render(tmpl string) string {
	return interpolation.Render(tmpl, x.data, x.template())
}

// awaiting reports whether this message is the reply a two-phase node waits for.
func (x *execution) awaiting(nodeID string) bool {
	return x.iteration == 1 && domain.AwaitingNode(x.data) == nodeID
}

// Execute processes one inbound message and returns the assembled response.
// Validation failures are normal responses. Unknown stages, chain overruns
// and store failures are returned as errors.
func (e *Engine) Execute(ctx context.Context, msg domain.MessageContext) (resp *domain.StageResponse, err error) {
	started := time.Now()
	msg.BotID = e.botID
	x := &execution{msg: msg, key: msg.Key()}
	event := &domain.MessageEvent{EventBase: e.base(x)}
	defer func() {
		event.Duration = time.Since(started)
		event.Err = err
		if resp != nil {
			event.Ended = resp.EndSession
			event.Transfer = resp.TransferToHuman
		}
		if e.hooks.OnMessageProcessed != nil {
			e.hooks.OnMessageProcessed(ctx, event)
		}
	}()

	sess, err := e.loadOrStart(ctx, x)
	if err != nil {
		return nil, err
	}
	x.data = domain.CloneData(sess.Data)

	current := sess.CurrentStage
	var collected []string
	var last *domain.StageResponse

	for x.iteration = 1; x.iteration <= e.maxIterations; x.iteration++ {
		event.Iterations = x.iteration

		stage, ok := e.program.Stage(current)
		if !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownStage, current)
		}

		if x.iteration == 1 {
			if rule := stage.Validator(); rule != nil && x.awaiting(stage.Node.ID) && !condition.Validate(msg.Text, rule) {
				event.Rejected = true
				e.logger.Debug("Input rejected by validator",
					"conversation_id", msg.ConversationID,
					"node_id", stage.Node.ID,
					"validator", rule.Type,
				)
				return &domain.StageResponse{Message: condition.ErrorMessage(rule)}, nil
			}
		}

		res, err := e.runStage(ctx, x, stage)
		if err != nil {
			return nil, &domain.StageError{Stage: stage.ID, NodeID: stage.Node.ID, Err: err}
		}
		if err := e.persist(ctx, x, res); err != nil {
			return nil, &domain.StageError{Stage: stage.ID, NodeID: stage.Node.ID, Err: err}
		}

		if !res.SkipMessage && res.Message != "" {
			collected = append(collected, res.Message)
		}
		last = res

		if res.Stops() {
			return assemble(last, collected), nil
		}
		current = *res.NextStage
	}

	e.logger.Warn("Auto-chain ceiling reached",
		"conversation_id", msg.ConversationID,
		"iterations", e.maxIterations,
		"stage", current,
	)
	return nil, fmt.Errorf("%w: %d iterations without stopping", domain.ErrChainOverrun, e.maxIterations)
}

func (e *Engine) loadOrStart(ctx context.Context, x *execution) (*domain.Session, error) {
	sess, err := e.store.GetActiveSession(ctx, x.key)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess, err = e.store.UpsertSession(ctx, x.key, e.program.Entry(), x.msg.SessionData, e.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	e.logger.Debug("Session started",
		"conversation_id", x.key.ConversationID,
		"stage", sess.CurrentStage,
	)
	return sess, nil
}

func (e *Engine) runStage(ctx context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	ev := &domain.StageEvent{
		EventBase: e.base(x),
		Stage:     stage.ID,
		NodeID:    stage.Node.ID,
		NodeType:  stage.Node.Type,
		Iteration: x.iteration,
	}
	if e.hooks.OnStageEnter != nil {
		e.hooks.OnStageEnter(ctx, ev)
	}
	defer func() {
		if e.hooks.OnStageLeave != nil {
			e.hooks.OnStageLeave(ctx, ev)
		}
	}()

	h, ok := e.handlers[stage.Node.Type]
	if !ok {
		return nil, fmt.Errorf("no handler for node type %q", stage.Node.Type)
	}
	res, err := h(ctx, x, stage)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &domain.StageResponse{}
	}
	return res, nil
}

// persist applies a stage response to the store and to the local copy.
func (e *Engine) persist(ctx context.Context, x *execution, res *domain.StageResponse) error {
	if len(res.SessionUpdates) > 0 {
		if err := e.store.MergeSessionData(ctx, x.key, res.SessionUpdates); err != nil {
			return fmt.Errorf("failed to merge session data: %w", err)
		}
		x.data = ports.ApplyUpdates(x.data, res.SessionUpdates)
	}
	if res.NextStage != nil {
		if err := e.store.UpdateStage(ctx, x.key, *res.NextStage); err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}
	}
	if res.EndSession {
		if err := e.store.EndSession(ctx, x.key); err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
	}
	return nil
}

// assemble builds the final response: the last collected text is the primary
// message, the earlier ones lead it.
func assemble(last *domain.StageResponse, collected []string) *domain.StageResponse {
	out := *last
	out.SessionUpdates = nil
	out.SkipMessage = false
	out.Message = ""
	out.LeadingMessages = nil
	if n := len(collected); n > 0 {
		out.Message = collected[n-1]
		if n > 1 {
			out.LeadingMessages = collected[:n-1]
		}
	}
	return &out
}

func (e *Engine) base(x *execution) domain.EventBase {
	return domain.EventBase{
		Timestamp:      time.Now(),
		BotID:          e.botID,
		ConversationID: x.msg.ConversationID,
	}
}
