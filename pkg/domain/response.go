package domain

// InteractiveType tags the kind of interactive payload.
type InteractiveType string

const (
	InteractiveButtons InteractiveType = "buttons"
	InteractiveList    InteractiveType = "list"
	InteractiveMedia   InteractiveType = "media"
)

// InteractivePayload is a response that needs the user (or an operator) to act
// before the chain can continue.
type InteractivePayload struct {
	Type    InteractiveType `json:"type"`
	Buttons []Button        `json:"buttons,omitempty"`
	List    *ListPayload    `json:"list,omitempty"`
	Media   *Media          `json:"media,omitempty"`
}

// ListPayload is the rendered form of a list node.
type ListPayload struct {
	ButtonText string        `json:"button_text,omitempty"`
	Sections   []ListSection `json:"sections"`
}

// StageResponse is the contract every stage handler returns, and the final
// response handed back to the channel adapter.
type StageResponse struct {
	Message              string              `json:"message,omitempty"`
	Interactive          *InteractivePayload `json:"interactive,omitempty"`
	NextStage            *StageID            `json:"next_stage,omitempty"`
	SessionUpdates       map[string]any      `json:"session_updates,omitempty"`
	EndSession           bool                `json:"end_session,omitempty"`
	SkipMessage          bool                `json:"skip_message,omitempty"`
	TransferToHuman      bool                `json:"transfer_to_human,omitempty"`
	TransferDepartmentID string              `json:"transfer_department_id,omitempty"`

	// LeadingMessages are the interstitial texts produced earlier in the same
	// auto-chain. Adapters emit them as separate bubbles before Message.
	LeadingMessages []string `json:"leading_messages,omitempty"`
}

// Stops reports whether the orchestrator must stop auto-chaining after this response.
func (r *StageResponse) Stops() bool {
	return r.NextStage == nil || r.EndSession || r.Interactive != nil || r.TransferToHuman
}

// SetVar records a session update on the response.
func (r *StageResponse) SetVar(key string, value any) {
	if r.SessionUpdates == nil {
		r.SessionUpdates = make(map[string]any)
	}
	r.SessionUpdates[key] = value
}

// MessageContext describes one inbound message.
type MessageContext struct {
	ConversationID string `json:"conversation_id"`
	BotID          string `json:"bot_id,omitempty"`
	// UserID is the user's identifier on the channel (phone number, handle...).
	UserID      string `json:"user_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Text        string `json:"text"`

	// SessionData optionally carries variables already loaded by the host.
	// They seed a freshly created session.
	SessionData map[string]any `json:"session_data,omitempty"`
}

// Key returns the session identity addressed by the message.
func (m *MessageContext) Key() SessionKey {
	return SessionKey{ConversationID: m.ConversationID, BotID: m.BotID}
}
