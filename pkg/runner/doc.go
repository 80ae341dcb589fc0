/*
Package runner drives a console conversation against a bot.

It reads user lines through an IOHandler, hands each one to a Processor
(usually a *botflow.Bot) and renders the response: leading messages,
the main message and any buttons, list or media payload.

# Usage

	r := runner.New(bot,
		runner.WithConversationID("local"),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}

Lines starting with "/" are commands: /quit ends the chat and /reset ends
the current session so the next line starts the flow over.
*/
package runner
