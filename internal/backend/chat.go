package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/provider"
	"github.com/xonecas/arona-chat/internal/rpc"
	"github.com/xonecas/arona-chat/internal/store"
)

// chatWithLLM generates and persists one assistant reply.
//
// The submitted message is persisted first unless it already carries an ID.
// The persona prompt is sent in flight and never stored. A cancelled ctx
// aborts the provider call and nothing further is written.
func (b *Backend) chatWithLLM(ctx context.Context, p model.ChatParams) (*model.Message, error) {
	conv, err := b.store.GetConversationWithStudent(p.ConversationID)
	if err != nil {
		return nil, mapErr(err, "conversation %s", p.ConversationID)
	}

	next := p.Message
	if next.Role == "" {
		next.Role = model.RoleUser
	}
	if next.Content == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidParams, "message content is required")
	}

	history, err := b.store.ListMessages(p.ConversationID)
	if err != nil {
		return nil, err
	}

	persisted := false
	prior := make([]provider.Message, 0, len(history))
	for _, m := range history {
		if next.ID != 0 && m.ID == next.ID {
			persisted = true
			continue
		}
		prior = append(prior, provider.Message{Role: string(m.Role), Content: m.Content})
	}

	if !persisted {
		if _, err := b.store.CreateMessage(model.MessageData{
			ConversationID: p.ConversationID,
			Role:           next.Role,
			Content:        next.Content,
		}); err != nil {
			return nil, fmt.Errorf("persist user message: %w", err)
		}
	}

	prompt := store.DefaultPrompt(conv.StudentName)
	if conv.Student != nil && conv.Student.Prompt != "" {
		prompt = conv.Student.Prompt
	}
	messages := provider.PrepareMessages(prompt, prior, provider.Message{
		Role:    string(next.Role),
		Content: next.Content,
	})

	name, pcfg, ok := b.cfg.ActiveProvider()
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	llm, err := b.providers.Create(name, pcfg.Model, pcfg.Temperature, b.apiKey(pcfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}

	if timeout := pcfg.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Debug().
		Str("conversation_id", p.ConversationID).
		Str("provider", name).
		Int("history", len(prior)).
		Int("sent", len(messages)).
		Msg("generating reply")

	reply, err := llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply.Reasoning != "" {
		log.Debug().
			Str("conversation_id", p.ConversationID).
			Int("reasoning_len", len(reply.Reasoning)).
			Msg("reply carried reasoning")
	}

	studentName := conv.StudentName
	msg, err := b.store.CreateMessage(model.MessageData{
		ConversationID: p.ConversationID,
		Role:           model.RoleAssistant,
		Content:        reply.Content,
		Name:           &studentName,
	})
	if err != nil {
		return nil, mapErr(err, "conversation %s", p.ConversationID)
	}
	return msg, nil
}
