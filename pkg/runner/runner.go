package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/domain"
)

// DefaultConversationID is used when none is configured.
const DefaultConversationID = "console"

// ProviderConsole tags messages sent from the runner.
const ProviderConsole = "console"

// Runner handles the chat loop using the provided IO.
type Runner struct {
	processor      Processor
	handler        IOHandler
	conversationID string
	userID         string
	userName       string
	sessionData    map[string]any
	exitOnEnd      bool
	logger         *slog.Logger
}

// New creates a Runner over p, defaulting to a text handler on Stdin/Stdout.
func New(p Processor, opts ...Option) *Runner {
	r := &Runner{
		processor:      p,
		conversationID: DefaultConversationID,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run loops until the input is exhausted, /quit is typed or ctx ends.
// Processing errors are reported through the handler and the chat continues.
func (r *Runner) Run(ctx context.Context) error {
	for {
		line, err := r.handler.Input(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasPrefix(line, "/") {
			stop, err := r.command(ctx, line)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			continue
		}

		resp, err := r.processor.ProcessMessage(ctx, domain.MessageContext{
			ConversationID: r.conversationID,
			UserID:         r.userID,
			UserName:       r.userName,
			Provider:       ProviderConsole,
			MessageType:    "text",
			Text:           line,
			SessionData:    r.sessionData,
		})
		if err != nil {
			r.logger.Error("Message processing failed", "err", err)
			if err := r.handler.SystemOutput(ctx, fmt.Sprintf("error: %v", err)); err != nil {
				return err
			}
			continue
		}
		if err := r.handler.Output(ctx, resp); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		if resp.TransferToHuman {
			note := "transferred to a human agent"
			if resp.TransferDepartmentID != "" {
				note += " (department " + resp.TransferDepartmentID + ")"
			}
			if err := r.handler.SystemOutput(ctx, note); err != nil {
				return err
			}
		}
		if resp.EndSession {
			if err := r.handler.SystemOutput(ctx, "conversation ended"); err != nil {
				return err
			}
			if r.exitOnEnd {
				return nil
			}
		}
	}
}

// command runs a slash command and reports whether the chat should stop.
func (r *Runner) command(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "/quit", "/exit":
		return true, nil
	case "/reset":
		ender, ok := r.processor.(SessionEnder)
		if !ok {
			return false, r.handler.SystemOutput(ctx, "reset is not supported")
		}
		if err := ender.EndSession(ctx, r.conversationID); err != nil {
			return false, r.handler.SystemOutput(ctx, fmt.Sprintf("error: %v", err))
		}
		return false, r.handler.SystemOutput(ctx, "session reset")
	default:
		return false, r.handler.SystemOutput(ctx, "unknown command "+line+" (try /reset or /quit)")
	}
}
