/*
Package botflow executes customer-support bot flows authored in a visual editor.

A flow is a directed graph of typed nodes (start, send_message, ask_question,
buttons, list, condition, set_variable, http_request, delay, ai_response, end).
A Bot compiles it into an addressable stage table and runs it one inbound
message at a time as a persistent, resumable state machine.

# Concept

Each message loads the conversation's session, validates the awaited reply,
then auto-chains through non-interactive stages until a stage asks the user for
something, ends the session, or hands the conversation to a human. Text is
rendered from session variables with {{token}} templates. HTTP and AI side
effects fail soft: their errors are stored in the session and the flow goes on.
Execution always terminates, bounded by an iteration ceiling.

Messages of the same conversation are serialized; distinct conversations run
concurrently.

# Usage

	def, err := file.LoadFlow("flows/support.yaml")
	if err != nil {
		log.Fatal(err)
	}

	bot := botflow.New("support", def,
		botflow.WithStore(redis.NewStore(client)),
		botflow.WithCompletionProvider(openai.New(apiKey)),
	)
	if err := bot.Initialize(ctx); err != nil {
		log.Fatal(err) // malformed graph, missing start node...
	}
	defer bot.Dispose(ctx)

	resp, err := bot.ProcessMessage(ctx, domain.MessageContext{
		ConversationID: "5511999990000",
		UserName:       "Ana",
		Text:           "hi",
	})

Many bots are usually hosted together through a registry.Registry, which the
HTTP adapter uses to publish and unpublish flows without restarting.
*/
package botflow
