package domain

import "time"

// NodeType identifies the behaviour of a node. The set is closed.
type NodeType string

const (
	NodeStart       NodeType = "start"
	NodeSendMessage NodeType = "send_message"
	NodeAskQuestion NodeType = "ask_question"
	NodeButtons     NodeType = "buttons"
	NodeList        NodeType = "list"
	NodeCondition   NodeType = "condition"
	NodeSetVariable NodeType = "set_variable"
	NodeHTTPRequest NodeType = "http_request"
	NodeDelay       NodeType = "delay"
	NodeAIResponse  NodeType = "ai_response"
	NodeEnd         NodeType = "end"
)

// NodeTypes lists every supported node type in declaration order.
var NodeTypes = []NodeType{
	NodeStart, NodeSendMessage, NodeAskQuestion, NodeButtons, NodeList, NodeCondition,
	NodeSetVariable, NodeHTTPRequest, NodeDelay, NodeAIResponse, NodeEnd,
}

// Valid reports whether t is one of the supported node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Interactive reports whether nodes of this type wait for a user reply
// and therefore branch on it rather than auto-chaining.
func (t NodeType) Interactive() bool {
	return t == NodeAskQuestion || t == NodeButtons || t == NodeList
}

// Edge handles with a fixed meaning.
const (
	HandleDefault = "default"
	HandleElse    = "else"
)

// Node represents one step of a flow as authored in the editor.
type Node struct {
	ID    string         `json:"id" yaml:"id"`
	Type  NodeType       `json:"type" yaml:"type"`
	Data  map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Label string         `json:"label,omitempty" yaml:"label,omitempty"`
}

// Edge is a directed connection between two nodes.
// SourceHandle disambiguates multiple exits of buttons, list and condition nodes.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
}

// IsDefault reports whether the edge is a plain (non-branch) exit.
func (e Edge) IsDefault() bool {
	return e.SourceHandle == "" || e.SourceHandle == HandleDefault
}

// FlowDefinition is the full graph authored for one bot.
// It is immutable once compiled into a running bot.
type FlowDefinition struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`

	// SessionTimeout is expressed in seconds. Zero means the store default.
	SessionTimeout int `json:"sessionTimeout,omitempty" yaml:"sessionTimeout,omitempty"`
	// AnalyticsEnabled is editor metadata for the host's analytics pipeline.
	// The engine carries it through Bot.Definition and publish untouched.
	AnalyticsEnabled bool `json:"analyticsEnabled,omitempty" yaml:"analyticsEnabled,omitempty"`
}

// Timeout returns the session lifetime configured for the flow.
func (f *FlowDefinition) Timeout() time.Duration {
	if f == nil || f.SessionTimeout <= 0 {
		return 0
	}
	return time.Duration(f.SessionTimeout) * time.Second
}
