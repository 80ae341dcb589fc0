// Package interpolation renders {{token}} placeholders from the message context
// and the session variables.
//
// Unresolved tokens are left in the output verbatim, so a misspelled variable is
// visible to the flow author instead of silently disappearing.
package interpolation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Built-in tokens resolved from the message context.
const (
	TokenMessage        = "message"
	TokenUserName       = "userName"
	TokenUserID         = "userId"
	TokenProvider       = "provider"
	TokenConversationID = "conversationId"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Context carries the built-in fields of the message being processed.
type Context struct {
	Message        string
	Name           string
	UserID         string
	Provider       string
	ConversationID string
}

func (c Context) builtin(token string) (string, bool) {
	var v string
	switch token {
	case TokenMessage:
		v = c.Message
	case TokenUserName:
		v = c.Name
	case TokenUserID:
		v = c.UserID
	case TokenProvider:
		v = c.Provider
	case TokenConversationID:
		v = c.ConversationID
	default:
		return "", false
	}
	return v, v != ""
}

// Render replaces every {{identifier}} in tmpl. Built-in context fields win over
// session variables; anything unresolved is kept literally as {{identifier}}.
func Render(tmpl string, data map[string]any, ctx Context) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		if v, ok := Lookup(name, data, ctx); ok {
			return Stringify(v)
		}
		return "{{" + name + "}}"
	})
}

// Lookup resolves a single identifier with the same precedence as Render.
func Lookup(name string, data map[string]any, ctx Context) (any, bool) {
	if v, ok := ctx.builtin(name); ok {
		return v, true
	}
	if v, ok := data[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// Stringify converts a session value into its textual form.
// Structured values are rendered as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
