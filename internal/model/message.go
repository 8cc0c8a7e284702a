package model

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMode selects the system prompt and whether tools are exposed.
type ChatMode string

const (
	ChatModeFast    ChatMode = "fast"
	ChatModeAgentic ChatMode = "agentic"
)

// ParseChatMode maps a request value to a ChatMode. Anything other than
// "agentic" is fast.
func ParseChatMode(s string) ChatMode {
	if ChatMode(strings.ToLower(strings.TrimSpace(s))) == ChatModeAgentic {
		return ChatModeAgentic
	}
	return ChatModeFast
}

// Part is one element of a UI message. Only text parts carry content the
// model sees; other part types are preserved on decode and ignored.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts both the plain {role, content} shape and the UI
// message shape {id, role, parts:[{type:"text", text}]}. Text parts are
// concatenated in order.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
		Parts   []Part          `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = raw.ID
	m.Role = raw.Role
	m.Content = ""

	if len(raw.Content) > 0 && string(raw.Content) != "null" {
		var s string
		if err := json.Unmarshal(raw.Content, &s); err == nil {
			if s == "" && len(raw.Parts) > 0 {
				s = joinText(raw.Parts)
			}
			m.Content = s
			return nil
		}
		// Content may itself be a parts array.
		var parts []Part
		if err := json.Unmarshal(raw.Content, &parts); err != nil {
			return err
		}
		m.Content = joinText(parts)
		return nil
	}

	m.Content = joinText(raw.Parts)
	return nil
}

func joinText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// WebContent is scraped markdown for a URL.
type WebContent struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}
