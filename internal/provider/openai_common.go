package provider

import (
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// toOpenAIMessages converts provider-agnostic messages to OpenAI SDK message format.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return result
}

// mergeSystemMessagesOpenAI merges all system messages into a single message at the start.
// OpenAI Chat Completions API requires:
// 1. System messages must be first
// 2. At least one non-system message must follow
//
// If only system messages exist, a minimal "Begin." user message is added.
func mergeSystemMessagesOpenAI(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(messages) == 0 {
		return messages
	}

	var systemBuffer strings.Builder
	nonSystemMessages := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == openai.ChatMessageRoleSystem {
			if systemBuffer.Len() > 0 {
				systemBuffer.WriteString("\n\n")
			}
			systemBuffer.WriteString(msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if systemBuffer.Len() > 0 {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemBuffer.String(),
		})
	}

	result = append(result, nonSystemMessages...)

	if len(nonSystemMessages) == 0 && len(result) > 0 {
		log.Debug().
			Msg("OpenAI: Only system messages present, adding minimal user message")
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Begin.",
		})
	}

	return result
}
