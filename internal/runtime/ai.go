package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/interpolation"
	"github.com/aretw0/botflow/pkg/ports"
)

var errNoCompletionProvider = errors.New("no completion provider configured")

// routingDecision is the JSON reply requested from the model in routing mode.
type routingDecision struct {
	Message      string          `json:"message"`
	DepartmentID json.RawMessage `json:"departmentId"`
}

func (e *Engine) aiResponse(ctx context.Context, x *execution, stage *compiler.Stage) (*domain.StageResponse, error) {
	data, err := payload[domain.AIResponseData](stage)
	if err != nil {
		return nil, err
	}
	res := &domain.StageResponse{NextStage: e.program.DefaultNext(stage.ID)}

	if data.InterimMessage != "" {
		e.notify(ctx, x, x.render(data.InterimMessage))
	}

	var departments []domain.Department
	if data.RouteToDepartment {
		departments = e.listDepartments(ctx, x)
	}

	req := ports.CompletionRequest{
		Model:        data.Model,
		Temperature:  data.Temperature,
		MaxTokens:    data.MaxTokens,
		SystemPrompt: x.render(data.SystemPrompt),
		UserPrompt:   userPrompt(x, data.IncludeVariables),
	}
	if req.Model == "" {
		req.Model = e.aiDefaults.Model
	}
	if req.Temperature == nil {
		t := e.aiDefaults.Temperature
		req.Temperature = &t
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = e.aiDefaults.MaxTokens
	}
	if data.RouteToDepartment {
		req.SystemPrompt += routingInstructions(departments)
	}

	started := time.Now()
	text, callErr := e.complete(ctx, req)
	e.emitExternalCall(ctx, x, stage, "ai", time.Since(started), callErr)

	if callErr != nil {
		e.logger.Warn("AI response failed",
			"conversation_id", x.msg.ConversationID,
			"node_id", stage.Node.ID,
			"err", callErr,
		)
		if data.ResponseVariable != "" {
			failure := &domain.ExternalCallError{Kind: "ai", NodeID: stage.Node.ID, Message: callErr.Error(), Err: callErr}
			res.SetVar(data.ResponseVariable, failure.Marker())
		}
		res.Message = x.render(data.FallbackMessage)
		return res, nil
	}

	reply := text
	if data.RouteToDepartment {
		if decision, ok := parseRoutingDecision(text); ok {
			if decision.Message != "" {
				reply = decision.Message
			}
			if id := decision.department(); id != "" && knownDepartment(departments, id) {
				res.NextStage = nil
				res.EndSession = true
				res.TransferToHuman = true
				res.TransferDepartmentID = id
			}
		}
	}

	res.Message = reply
	if data.ResponseVariable != "" {
		res.SetVar(data.ResponseVariable, reply)
	}
	return res, nil
}

func (e *Engine) complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if e.completions == nil {
		return "", errNoCompletionProvider
	}
	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	text, err := e.completions.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// notify sends an interim message without waiting for it.
func (e *Engine) notify(ctx context.Context, x *execution, text string) {
	if e.notifier == nil || text == "" {
		return
	}
	msg := x.msg
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Interim notifier panicked", "conversation_id", msg.ConversationID, "panic", r)
			}
		}()
		if err := e.notifier.Notify(ctx, msg, text); err != nil {
			e.logger.Warn("Interim message not delivered",
				"conversation_id", msg.ConversationID,
				"err", err,
			)
		}
	}()
}

func (e *Engine) listDepartments(ctx context.Context, x *execution) []domain.Department {
	if e.departments == nil {
		return nil
	}
	deps, err := e.departments.ListDepartments(ctx)
	if err != nil {
		e.logger.Warn("Department directory unavailable",
			"conversation_id", x.msg.ConversationID,
			"err", err,
		)
		return nil
	}
	return deps
}

// userPrompt is the inbound text, optionally prefixed with the non-internal
// session variables in key order.
func userPrompt(x *execution, includeVariables bool) string {
	if !includeVariables {
		return x.msg.Text
	}
	keys := make([]string, 0, len(x.data))
	for k := range x.data {
		if !domain.IsInternalKey(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return x.msg.Text
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Conversation variables:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, interpolation.Stringify(x.data[k]))
	}
	b.WriteString("\nUser message: ")
	b.WriteString(x.msg.Text)
	return b.String()
}

func routingInstructions(departments []domain.Department) string {
	var b strings.Builder
	b.WriteString("\n\nAvailable departments:\n")
	if len(departments) == 0 {
		b.WriteString("(none)\n")
	}
	for _, d := range departments {
		fmt.Fprintf(&b, "- id: %s, name: %s", d.ID, d.Name)
		if d.Description != "" {
			fmt.Fprintf(&b, ", description: %s", d.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReply only with a JSON object of the form " +
		`{"message": "<text for the user>", "departmentId": "<department id or null>"}` +
		". Set departmentId only when the user must be transferred to that department.")
	return b.String()
}

func (d routingDecision) department() string {
	// Models sometimes answer with a bare number for numeric-looking ids.
	var v any
	if len(d.DepartmentID) == 0 || json.Unmarshal(d.DepartmentID, &v) != nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func knownDepartment(departments []domain.Department, id string) bool {
	for _, d := range departments {
		if d.ID == id {
			return true
		}
	}
	return false
}

// parseRoutingDecision decodes the first balanced {...} block in text.
func parseRoutingDecision(text string) (routingDecision, bool) {
	var d routingDecision
	block, ok := firstJSONObject(text)
	if !ok {
		return d, false
	}
	if err := json.Unmarshal([]byte(block), &d); err != nil {
		return d, false
	}
	return d, true
}

func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
