package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StartData configures a start node.
type StartData struct {
	Message string `json:"message,omitempty" mapstructure:"message"`
}

// Media describes an attachment sent to the user.
type Media struct {
	Type    string `json:"type" mapstructure:"type"` // image, video, audio, document
	URL     string `json:"url" mapstructure:"url"`
	Caption string `json:"caption,omitempty" mapstructure:"caption"`
}

// SendMessageData configures a send_message node: plain text or media.
type SendMessageData struct {
	Message string `json:"message,omitempty" mapstructure:"message"`
	Media   *Media `json:"media,omitempty" mapstructure:"media"`
}

// ValidatorType names an input validator.
type ValidatorType string

const (
	ValidateNone    ValidatorType = "none"
	ValidateOptions ValidatorType = "options"
	ValidateRegex   ValidatorType = "regex"
	ValidateLength  ValidatorType = "length"
	ValidateNumber  ValidatorType = "number"
	ValidateEmail   ValidatorType = "email"
	ValidatePhone   ValidatorType = "phone"
)

// ValidationRule constrains the raw text accepted by an ask_question node.
type ValidationRule struct {
	Type         ValidatorType `json:"type" mapstructure:"type"`
	Options      []string      `json:"options,omitempty" mapstructure:"options"`
	Pattern      string        `json:"pattern,omitempty" mapstructure:"pattern"`
	Min          *int          `json:"min,omitempty" mapstructure:"min"`
	Max          *int          `json:"max,omitempty" mapstructure:"max"`
	ErrorMessage string        `json:"errorMessage,omitempty" mapstructure:"errorMessage"`
}

// Declared reports whether the rule actually constrains input.
func (r *ValidationRule) Declared() bool {
	return r != nil && r.Type != "" && r.Type != ValidateNone
}

// AskQuestionData configures an ask_question node.
type AskQuestionData struct {
	Question   string          `json:"question" mapstructure:"question"`
	Variable   string          `json:"variable" mapstructure:"variable"`
	Validation *ValidationRule `json:"validation,omitempty" mapstructure:"validation"`
}

// Button is one choice of a buttons node. Its ID doubles as the edge handle.
type Button struct {
	ID   string `json:"id" mapstructure:"id"`
	Text string `json:"text" mapstructure:"text"`
}

// ButtonsData configures a buttons node.
type ButtonsData struct {
	Message  string   `json:"message" mapstructure:"message"`
	Buttons  []Button `json:"buttons" mapstructure:"buttons"`
	Footer   string   `json:"footer,omitempty" mapstructure:"footer"`
	Variable string   `json:"variable,omitempty" mapstructure:"variable"`
}

// ListRow is one selectable row of a list node. Its ID doubles as the edge handle.
type ListRow struct {
	ID          string `json:"id" mapstructure:"id"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// ListSection groups list rows.
type ListSection struct {
	Title string    `json:"title,omitempty" mapstructure:"title"`
	Rows  []ListRow `json:"rows" mapstructure:"rows"`
}

// ListData configures a list node.
type ListData struct {
	Message    string        `json:"message" mapstructure:"message"`
	ButtonText string        `json:"buttonText,omitempty" mapstructure:"buttonText"`
	Sections   []ListSection `json:"sections" mapstructure:"sections"`
	Variable   string        `json:"variable,omitempty" mapstructure:"variable"`
}

// Condition is one predicate of a condition node. Its ID doubles as the edge handle.
type Condition struct {
	ID       string `json:"id" mapstructure:"id"`
	Variable string `json:"variable" mapstructure:"variable"`
	Operator string `json:"operator" mapstructure:"operator"`
	Value    string `json:"value,omitempty" mapstructure:"value"`
}

// ConditionData configures a condition node. Predicates are evaluated in order.
type ConditionData struct {
	Conditions []Condition `json:"conditions" mapstructure:"conditions"`
}

// Assignment sets one session variable from a template.
type Assignment struct {
	Variable string `json:"variable" mapstructure:"variable"`
	Value    string `json:"value" mapstructure:"value"`
}

// SetVariableData configures a set_variable node.
type SetVariableData struct {
	Assignments []Assignment `json:"assignments" mapstructure:"assignments"`
}

// HTTPRequestData configures an http_request node.
// Body is either a template string or a JSON-like structure whose string leaves
// are templates.
type HTTPRequestData struct {
	Method           string            `json:"method,omitempty" mapstructure:"method"`
	URL              string            `json:"url" mapstructure:"url"`
	Headers          map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	Body             any               `json:"body,omitempty" mapstructure:"body"`
	TimeoutMs        int               `json:"timeoutMs,omitempty" mapstructure:"timeoutMs"`
	ResponseVariable string            `json:"responseVariable,omitempty" mapstructure:"responseVariable"`
}

// DelayData configures a delay node.
type DelayData struct {
	Seconds float64 `json:"seconds" mapstructure:"seconds"`
}

// AIResponseData configures an ai_response node.
type AIResponseData struct {
	SystemPrompt      string   `json:"systemPrompt,omitempty" mapstructure:"systemPrompt"`
	Model             string   `json:"model,omitempty" mapstructure:"model"`
	Temperature       *float32 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens         int      `json:"maxTokens,omitempty" mapstructure:"maxTokens"`
	ResponseVariable  string   `json:"responseVariable,omitempty" mapstructure:"responseVariable"`
	IncludeVariables  bool     `json:"includeVariables,omitempty" mapstructure:"includeVariables"`
	RouteToDepartment bool     `json:"routeToDepartment,omitempty" mapstructure:"routeToDepartment"`
	InterimMessage    string   `json:"interimMessage,omitempty" mapstructure:"interimMessage"`
	FallbackMessage   string   `json:"fallbackMessage,omitempty" mapstructure:"fallbackMessage"`
}

// EndData configures an end node.
type EndData struct {
	Message         string `json:"message,omitempty" mapstructure:"message"`
	TransferToHuman bool   `json:"transferToHuman,omitempty" mapstructure:"transferToHuman"`
	DepartmentID    string `json:"departmentId,omitempty" mapstructure:"departmentId"`
}

// DecodePayload decodes a node's free-form data into the typed payload of its type.
// Decoding is weakly typed ("3" decodes into an int) and ignores unknown keys.
func DecodePayload(node Node) (any, error) {
	var out any
	switch node.Type {
	case NodeStart:
		out = &StartData{}
	case NodeSendMessage:
		out = &SendMessageData{}
	case NodeAskQuestion:
		out = &AskQuestionData{}
	case NodeButtons:
		out = &ButtonsData{}
	case NodeList:
		out = &ListData{}
	case NodeCondition:
		out = &ConditionData{}
	case NodeSetVariable:
		out = &SetVariableData{}
	case NodeHTTPRequest:
		out = &HTTPRequestData{}
	case NodeDelay:
		out = &DelayData{}
	case NodeAIResponse:
		out = &AIResponseData{}
	case NodeEnd:
		out = &EndData{}
	default:
		return nil, fmt.Errorf("unknown node type %q", node.Type)
	}
	if len(node.Data) == 0 {
		return out, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(node.Data); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", node.Type, err)
	}
	return out, nil
}
