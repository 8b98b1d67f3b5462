package provider

import (
	"github.com/xonecas/arona-chat/internal/constants"
)

// PrepareMessages builds the request for one generation.
//
// The persona prompt is prepended when history carries no system message.
// A trailing run of user messages in history is folded into next, joined with
// a single newline, and any remaining consecutive same-role messages are
// collapsed with a blank line so roles strictly alternate.
func PrepareMessages(systemPrompt string, history []Message, next Message) []Message {
	messages := make([]Message, 0, len(history)+2)

	hasSystem := false
	for _, m := range history {
		if m.Role == "system" {
			hasSystem = true
			break
		}
	}
	if !hasSystem && systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}

	end := len(history)
	merged := next.Content
	if next.Role == "user" {
		for end > 0 && history[end-1].Role == "user" {
			merged = history[end-1].Content + constants.MergedUserSeparator + merged
			end--
		}
	}
	messages = append(messages, history[:end]...)
	messages = append(messages, Message{Role: next.Role, Content: merged})

	return collapseRoles(messages)
}

func collapseRoles(messages []Message) []Message {
	result := make([]Message, 0, len(messages))
	for _, m := range messages {
		if n := len(result); n > 0 && result[n-1].Role == m.Role {
			result[n-1].Content += constants.MergedRoleSeparator + m.Content
			continue
		}
		result = append(result, m)
	}
	return result
}
