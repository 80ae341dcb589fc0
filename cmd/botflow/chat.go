package main

import (
	"os"
	"os/signal"

	"github.com/aretw0/botflow/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <flow-file>",
	Short: "Talk to a flow in the terminal",
	Long:  `Runs a single flow against the console. Type /reset to start over and /quit to leave.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := cli.ChatOptions{
			FlowPath: args[0],
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
		}
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.ExitOnEnd, _ = cmd.Flags().GetBool("exit-on-end")
		opts.ConversationID, _ = cmd.Flags().GetString("conversation")
		opts.UserName, _ = cmd.Flags().GetString("user")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return cli.Chat(ctx, cfg, logger, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("json", false, "Exchange JSON lines instead of text")
	chatCmd.Flags().Bool("exit-on-end", false, "Leave when the flow ends the conversation")
	chatCmd.Flags().String("conversation", "", "Conversation id (resumes a stored session)")
	chatCmd.Flags().String("user", "", "User name sent with every message")
}
