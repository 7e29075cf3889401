package heartbeat

import (
	"encoding/json"
	"strings"
)

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionMessage
	ActionTask
	ActionSchedule
)

// Action is the decision returned by the autonomous probe. Unknown or
// unparseable responses collapse to ActionNone; extra JSON fields are
// ignored.
type Action struct {
	Kind    ActionKind
	Content string

	// Schedule fields
	Name   string
	Expr   string
	Prompt string
}

// ParseAction extracts the JSON action object from a model reply by
// taking the span from the first '{' to the last '}'.
func ParseAction(raw string) Action {
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return Action{Kind: ActionNone}
	}

	var payload struct {
		Action   string `json:"action"`
		Content  string `json:"content"`
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Prompt   string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return Action{Kind: ActionNone}
	}

	switch strings.ToLower(strings.TrimSpace(payload.Action)) {
	case "message":
		content := strings.TrimSpace(payload.Content)
		if content == "" {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionMessage, Content: content}
	case "task":
		content := strings.TrimSpace(payload.Content)
		if content == "" {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionTask, Content: content}
	case "schedule":
		expr := strings.TrimSpace(payload.Schedule)
		prompt := strings.TrimSpace(payload.Prompt)
		if expr == "" || prompt == "" {
			return Action{Kind: ActionNone}
		}
		return Action{
			Kind:   ActionSchedule,
			Name:   strings.TrimSpace(payload.Name),
			Expr:   expr,
			Prompt: prompt,
		}
	default:
		return Action{Kind: ActionNone}
	}
}
