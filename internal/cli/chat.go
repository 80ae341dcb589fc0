package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/pkg/adapters/file"
	"github.com/aretw0/botflow/pkg/runner"
)

// ChatOptions configures a console conversation.
type ChatOptions struct {
	FlowPath       string
	ConversationID string
	UserName       string
	JSON           bool
	ExitOnEnd      bool

	In  io.Reader
	Out io.Writer
}

// Chat talks to the flow at opts.FlowPath over the console. Sessions live in
// the configured backend, so a redis or sql store resumes earlier chats.
func Chat(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions) error {
	def, err := file.ReadFlow(opts.FlowPath)
	if err != nil {
		return err
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		handler = runner.NewTextHandler(opts.In, opts.Out)
	}

	stack, err := BuildStack(ctx, cfg, logger,
		WithBotOptions(botflow.WithNotifier(runner.Notifier{Handler: handler})))
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	bot := botflow.New(botID(opts.FlowPath), def, stack.BotOptions...)
	if err := bot.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = bot.Dispose(context.Background()) }()

	runnerOpts := []runner.Option{
		runner.WithHandler(handler),
		runner.WithLogger(logger),
		runner.WithExitOnEnd(opts.ExitOnEnd),
	}
	if opts.ConversationID != "" {
		runnerOpts = append(runnerOpts, runner.WithConversationID(opts.ConversationID))
	}
	if opts.UserName != "" {
		runnerOpts = append(runnerOpts, runner.WithUser(opts.UserName, opts.UserName))
	}

	if !opts.JSON {
		_ = handler.SystemOutput(ctx, fmt.Sprintf("chatting with %s (/reset to restart, /quit to leave)", bot.ID()))
	}
	return runner.New(bot, runnerOpts...).Run(ctx)
}

// botID derives a bot id from a flow file name.
func botID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
