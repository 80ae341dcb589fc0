package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/dsl"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletions struct {
	mu    sync.Mutex
	reply string
	err   error
	last  ports.CompletionRequest
}

func (f *fakeCompletions) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.reply, f.err
}

type chanNotifier chan string

func (c chanNotifier) Notify(_ context.Context, _ domain.MessageContext, text string) error {
	c <- text
	return nil
}

var departments = memory.Directory{
	{ID: "billing", Name: "Billing", Description: "Invoices and payments"},
	{ID: "tech", Name: "Technical support"},
	{ID: "3", Name: "Claims"},
}

func aiFlow(configure func(*dsl.NodeBuilder)) *dsl.Builder {
	b := dsl.New()
	b.Add("start").Start("").Go("ai")
	n := b.Add("ai").AI("You help {{userName}}.").SaveTo("answer").Go("after")
	configure(n)
	b.Add("after").End("")
	return b
}

func TestAIResponse_Plain(t *testing.T) {
	ai := &fakeCompletions{reply: "  Our store opens at 9.  "}
	h := newHarness(t, aiFlow(func(n *dsl.NodeBuilder) {}),
		runtime.WithCompletionProvider(ai),
		runtime.WithAIDefaults(runtime.AIDefaults{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 256}),
	)

	resp := h.send("When do you open?")
	assert.Equal(t, "Our store opens at 9.", resp.Message)
	assert.True(t, resp.EndSession)
	assert.False(t, resp.TransferToHuman)

	assert.Equal(t, "You help Ana Souza.", ai.last.SystemPrompt)
	assert.Equal(t, "When do you open?", ai.last.UserPrompt)
	assert.Equal(t, "gpt-4o-mini", ai.last.Model)
	require.NotNil(t, ai.last.Temperature)
	assert.InDelta(t, 0.3, *ai.last.Temperature, 1e-6)
	assert.Equal(t, 256, ai.last.MaxTokens)

	answer, _ := h.store.lastMerged("answer")
	assert.Equal(t, "Our store opens at 9.", answer)
}

func TestAIResponse_IncludeVariablesSkipsInternalKeys(t *testing.T) {
	ai := &fakeCompletions{reply: "ok"}
	b := dsl.New()
	b.Add("start").Start("").Go("ask")
	b.Add("ask").Ask("Plan?", "plan").Go("ai")
	b.Add("ai").AI("").Model("gpt-4o").IncludeVariables()
	h := newHarness(t, b, runtime.WithCompletionProvider(ai))

	h.send("hi")
	h.send("pro")
	assert.Equal(t, "Conversation variables:\n- plan: pro\n\nUser message: pro", ai.last.UserPrompt)
	assert.Equal(t, "gpt-4o", ai.last.Model)
	assert.NotContains(t, ai.last.UserPrompt, domain.KeyAwaitingInput)
}

func TestAIResponse_Routing(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		message  string
		transfer string
	}{
		{
			name:     "valid department wrapped in prose",
			reply:    "Sure! {\"message\": \"Transferring you to billing {ok}\", \"departmentId\": \"billing\"} thanks",
			message:  "Transferring you to billing {ok}",
			transfer: "billing",
		},
		{
			name:     "numeric department id",
			reply:    `{"message": "Transferring you", "departmentId": 3}`,
			message:  "Transferring you",
			transfer: "3",
		},
		{
			name:    "unsupported department id type",
			reply:   `{"message": "Let me check", "departmentId": true}`,
			message: "Let me check",
		},
		{
			name:    "unknown department keeps the bot in control",
			reply:   `{"message": "I can help here", "departmentId": "legal"}`,
			message: "I can help here",
		},
		{
			name:    "null department",
			reply:   `{"message": "Anything else?", "departmentId": null}`,
			message: "Anything else?",
		},
		{
			name:    "unparsable reply is used verbatim",
			reply:   "I think you need billing",
			message: "I think you need billing",
		},
		{
			name:    "empty message falls back to raw text",
			reply:   `{"message": "", "departmentId": null}`,
			message: `{"message": "", "departmentId": null}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeCompletions{reply: tt.reply}
			h := newHarness(t, aiFlow(func(n *dsl.NodeBuilder) { n.RouteToDepartment() }),
				runtime.WithCompletionProvider(ai),
				runtime.WithDepartments(departments),
			)
			resp := h.send("my invoice is wrong")
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.transfer != "", resp.TransferToHuman)
			assert.Equal(t, tt.transfer, resp.TransferDepartmentID)
			assert.True(t, resp.EndSession)

			assert.Contains(t, ai.last.SystemPrompt, "id: billing, name: Billing, description: Invoices and payments")
			assert.Contains(t, ai.last.SystemPrompt, `"departmentId"`)
		})
	}
}

func TestAIResponse_FailureIsFailSoft(t *testing.T) {
	ai := &fakeCompletions{err: errors.New("rate limited")}
	b := dsl.New()
	b.Add("start").Start("").Go("ai")
	b.Add("ai").AI("x").SaveTo("answer").Fallback("Sorry {{userName}}, try later").Go("after")
	b.Add("after").Send("Still here")
	h := newHarness(t, b, runtime.WithCompletionProvider(ai))

	resp := h.send("hello")
	assert.Equal(t, "Still here", resp.Message)
	assert.Equal(t, []string{"Sorry Ana Souza, try later"}, resp.LeadingMessages)

	marker, _ := h.store.lastMerged("answer")
	assert.Equal(t, map[string]any{"error": true, "message": "rate limited"}, marker)
}

func TestAIResponse_WithoutProvider(t *testing.T) {
	h := newHarness(t, aiFlow(func(n *dsl.NodeBuilder) { n.Fallback("Unavailable") }))
	resp := h.send("hello")
	assert.Equal(t, "Unavailable", resp.Message)
}

func TestAIResponse_InterimMessage(t *testing.T) {
	notes := make(chanNotifier, 1)
	ai := &fakeCompletions{reply: "done"}
	h := newHarness(t, aiFlow(func(n *dsl.NodeBuilder) { n.Interim("One moment, {{userName}}...") }),
		runtime.WithCompletionProvider(ai),
		runtime.WithNotifier(notes),
	)

	resp := h.send("hello")
	assert.Equal(t, "done", resp.Message)

	select {
	case got := <-notes:
		assert.Equal(t, "One moment, Ana Souza...", got)
	case <-time.After(time.Second):
		t.Fatal("interim message was not delivered")
	}
}
