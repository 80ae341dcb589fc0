package dsl

import "github.com/aretw0/botflow/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	edges   []domain.Edge
	builder *Builder
}

func (n *NodeBuilder) typed(t domain.NodeType) *NodeBuilder {
	n.node.Type = t
	return n
}

func (n *NodeBuilder) set(key string, value any) *NodeBuilder {
	n.node.Data[key] = value
	return n
}

// Label sets the editor label of the node.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Start marks the node as the flow entry, with an optional welcome message.
func (n *NodeBuilder) Start(message string) *NodeBuilder {
	return n.typed(domain.NodeStart).set("message", message)
}

// Send makes the node a send_message node.
func (n *NodeBuilder) Send(message string) *NodeBuilder {
	return n.typed(domain.NodeSendMessage).set("message", message)
}

// Media makes the node send an attachment.
func (n *NodeBuilder) Media(mediaType, url, caption string) *NodeBuilder {
	return n.typed(domain.NodeSendMessage).set("media", map[string]any{
		"type": mediaType, "url": url, "caption": caption,
	})
}

// Ask makes the node an ask_question node storing the reply in variable.
func (n *NodeBuilder) Ask(question, variable string) *NodeBuilder {
	return n.typed(domain.NodeAskQuestion).set("question", question).set("variable", variable)
}

// Validate attaches an input rule to an ask_question node.
func (n *NodeBuilder) Validate(rule domain.ValidationRule) *NodeBuilder {
	v := map[string]any{"type": string(rule.Type)}
	if len(rule.Options) > 0 {
		opts := make([]any, len(rule.Options))
		for i, o := range rule.Options {
			opts[i] = o
		}
		v["options"] = opts
	}
	if rule.Pattern != "" {
		v["pattern"] = rule.Pattern
	}
	if rule.Min != nil {
		v["min"] = *rule.Min
	}
	if rule.Max != nil {
		v["max"] = *rule.Max
	}
	if rule.ErrorMessage != "" {
		v["errorMessage"] = rule.ErrorMessage
	}
	return n.set("validation", v)
}

// Buttons makes the node a buttons node. Each button id is also the handle of its exit.
func (n *NodeBuilder) Buttons(message string, buttons ...domain.Button) *NodeBuilder {
	list := make([]any, len(buttons))
	for i, b := range buttons {
		list[i] = map[string]any{"id": b.ID, "text": b.Text}
	}
	return n.typed(domain.NodeButtons).set("message", message).set("buttons", list)
}

// List makes the node a list node. Each row id is also the handle of its exit.
func (n *NodeBuilder) List(message, buttonText string, sections ...domain.ListSection) *NodeBuilder {
	out := make([]any, len(sections))
	for i, s := range sections {
		rows := make([]any, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = map[string]any{"id": r.ID, "title": r.Title, "description": r.Description}
		}
		out[i] = map[string]any{"title": s.Title, "rows": rows}
	}
	return n.typed(domain.NodeList).set("message", message).set("buttonText", buttonText).set("sections", out)
}

// SaveTo sets the variable receiving the node's result: the answer of a
// question, the choice of buttons or lists, the response of http and ai nodes.
func (n *NodeBuilder) SaveTo(variable string) *NodeBuilder {
	switch n.node.Type {
	case domain.NodeHTTPRequest, domain.NodeAIResponse:
		return n.set("responseVariable", variable)
	default:
		return n.set("variable", variable)
	}
}

// When appends a predicate to a condition node and links its handle to target.
func (n *NodeBuilder) When(id, variable, operator, value, target string) *NodeBuilder {
	n.typed(domain.NodeCondition)
	conds, _ := n.node.Data["conditions"].([]any)
	conds = append(conds, map[string]any{"id": id, "variable": variable, "operator": operator, "value": value})
	n.set("conditions", conds)
	return n.On(id, target)
}

// Assign appends an assignment to a set_variable node.
func (n *NodeBuilder) Assign(variable, value string) *NodeBuilder {
	n.typed(domain.NodeSetVariable)
	list, _ := n.node.Data["assignments"].([]any)
	return n.set("assignments", append(list, map[string]any{"variable": variable, "value": value}))
}

// HTTP makes the node an http_request node.
func (n *NodeBuilder) HTTP(method, url string) *NodeBuilder {
	return n.typed(domain.NodeHTTPRequest).set("method", method).set("url", url)
}

// Header adds a templated request header.
func (n *NodeBuilder) Header(key, value string) *NodeBuilder {
	h, _ := n.node.Data["headers"].(map[string]any)
	if h == nil {
		h = make(map[string]any)
	}
	h[key] = value
	return n.set("headers", h)
}

// Body sets the request body: a template string or a structure.
func (n *NodeBuilder) Body(body any) *NodeBuilder {
	return n.set("body", body)
}

// TimeoutMs sets the request timeout.
func (n *NodeBuilder) TimeoutMs(ms int) *NodeBuilder {
	return n.set("timeoutMs", ms)
}

// Delay makes the node pause for seconds.
func (n *NodeBuilder) Delay(seconds float64) *NodeBuilder {
	return n.typed(domain.NodeDelay).set("seconds", seconds)
}

// AI makes the node an ai_response node.
func (n *NodeBuilder) AI(systemPrompt string) *NodeBuilder {
	return n.typed(domain.NodeAIResponse).set("systemPrompt", systemPrompt)
}

// Model overrides the completion model of an ai_response node.
func (n *NodeBuilder) Model(model string) *NodeBuilder {
	return n.set("model", model)
}

// RouteToDepartment lets the model hand the conversation to a department.
func (n *NodeBuilder) RouteToDepartment() *NodeBuilder {
	return n.set("routeToDepartment", true)
}

// IncludeVariables prefixes the prompt with the session variables.
func (n *NodeBuilder) IncludeVariables() *NodeBuilder {
	return n.set("includeVariables", true)
}

// Interim sets a message delivered while the model is working.
func (n *NodeBuilder) Interim(message string) *NodeBuilder {
	return n.set("interimMessage", message)
}

// Fallback sets the message emitted when the model call fails.
func (n *NodeBuilder) Fallback(message string) *NodeBuilder {
	return n.set("fallbackMessage", message)
}

// End makes the node an end node with an optional farewell.
func (n *NodeBuilder) End(message string) *NodeBuilder {
	return n.typed(domain.NodeEnd).set("message", message)
}

// Transfer makes an end node hand the conversation to a human in department.
func (n *NodeBuilder) Transfer(departmentID string) *NodeBuilder {
	return n.set("transferToHuman", true).set("departmentId", departmentID)
}

// Go adds the default exit.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.edges = append(n.edges, domain.Edge{Source: n.node.ID, Target: target})
	return n
}

// On adds an exit selected by handle (a button, row or predicate id).
func (n *NodeBuilder) On(handle, target string) *NodeBuilder {
	n.edges = append(n.edges, domain.Edge{Source: n.node.ID, Target: target, SourceHandle: handle})
	return n
}

// Else adds the exit of a condition node taken when no predicate matches.
func (n *NodeBuilder) Else(target string) *NodeBuilder {
	return n.On(domain.HandleElse, target)
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
