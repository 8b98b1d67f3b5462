// Package backend serves the chat commands over SQLite and an LLM provider.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/config"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/provider"
	"github.com/xonecas/arona-chat/internal/rpc"
	"github.com/xonecas/arona-chat/internal/store"
)

// Backend implements the command surface.
type Backend struct {
	store     *store.Store
	providers *provider.Registry
	cfg       *config.Config
}

// New creates a backend.
func New(s *store.Store, providers *provider.Registry, cfg *config.Config) *Backend {
	return &Backend{
		store:     s,
		providers: providers,
		cfg:       cfg,
	}
}

// Register binds every command to d.
func (b *Backend) Register(d *rpc.Dispatcher) {
	d.Register(model.CmdGetConversations, rpc.Typed(b.getConversations))
	d.Register(model.CmdGetConversationByID, rpc.Typed(b.getConversationByID))
	d.Register(model.CmdCreateConversation, rpc.Typed(b.createConversation))
	d.Register(model.CmdUpdateConversation, rpc.Typed(b.updateConversation))
	d.Register(model.CmdDeleteConversation, rpc.Typed(b.deleteConversation))
	d.Register(model.CmdGetMessages, rpc.Typed(b.getMessages))
	d.Register(model.CmdGetMessagesWithPagination, rpc.Typed(b.getMessagesPage))
	d.Register(model.CmdCreateMessage, rpc.Typed(b.createMessage))
	d.Register(model.CmdChatWithLLM, rpc.Typed(b.chatWithLLM))
	d.Register(model.CmdSetStore, rpc.Typed(b.setStore))
	d.Register(model.CmdGetStore, rpc.Typed(b.getStore))
}

func (b *Backend) getConversations(ctx context.Context, _ struct{}) ([]*model.ConversationWithStudent, error) {
	conversations, err := b.store.ListConversations()
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []*model.ConversationWithStudent{}
	}
	return conversations, nil
}

// getConversationByID answers null for unknown ids.
func (b *Backend) getConversationByID(ctx context.Context, p model.IDParams) (*model.ConversationWithStudent, error) {
	conv, err := b.store.GetConversationWithStudent(p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (b *Backend) createConversation(ctx context.Context, p model.CreateConversationParams) (*model.Conversation, error) {
	if p.Data.StudentName == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidParams, "studentName is required")
	}
	conv, err := b.store.CreateConversation(p.Data)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("conversation_id", conv.ID).
		Str("student", conv.StudentName).
		Msg("conversation created")
	return conv, nil
}

func (b *Backend) updateConversation(ctx context.Context, p model.UpdateConversationParams) (*model.Conversation, error) {
	conv, err := b.store.UpdateConversation(p.ID, p.Data)
	if err != nil {
		return nil, mapErr(err, "conversation %s", p.ID)
	}
	return conv, nil
}

func (b *Backend) deleteConversation(ctx context.Context, p model.IDParams) (*model.Conversation, error) {
	conv, err := b.store.DeleteConversation(p.ID)
	if err != nil {
		return nil, mapErr(err, "conversation %s", p.ID)
	}
	log.Info().Str("conversation_id", p.ID).Msg("conversation deleted")
	return conv, nil
}

func (b *Backend) getMessages(ctx context.Context, p model.ConversationMessagesParams) ([]*model.Message, error) {
	return b.store.ListMessages(p.ConversationID)
}

func (b *Backend) getMessagesPage(ctx context.Context, p model.MessagesPageParams) ([]*model.Message, error) {
	return b.store.ListMessagesPage(p.ConversationID, p.Page, p.PageSize)
}

func (b *Backend) createMessage(ctx context.Context, p model.CreateMessageParams) (*model.Message, error) {
	if !p.Data.Role.Valid() {
		return nil, rpc.Errorf(rpc.CodeInvalidParams, "invalid role %q", p.Data.Role)
	}
	msg, err := b.store.CreateMessage(p.Data)
	if err != nil {
		return nil, mapErr(err, "conversation %s", p.Data.ConversationID)
	}
	return msg, nil
}

func (b *Backend) setStore(ctx context.Context, p model.SetStoreParams) (any, error) {
	if p.Key == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidParams, "key is required")
	}
	value := p.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if err := b.store.SetSetting(p.Key, string(value)); err != nil {
		return nil, err
	}
	log.Debug().Str("key", p.Key).Msg("setting stored")
	return nil, nil
}

func (b *Backend) getStore(ctx context.Context, p model.GetStoreParams) (model.StoreValue, error) {
	raw, ok, err := b.store.GetSetting(p.Key)
	if err != nil {
		return model.StoreValue{}, err
	}
	out := model.StoreValue{Key: p.Key, Found: ok}
	if ok {
		out.Value = json.RawMessage(raw)
	}
	return out, nil
}

// apiKey returns the key stored by the client, falling back to the
// configured one.
func (b *Backend) apiKey(fallback string) string {
	raw, ok, err := b.store.GetSetting(constants.SettingAPIKey)
	if err != nil {
		log.Warn().Err(err).Msg("read api key setting")
		return fallback
	}
	if !ok {
		return fallback
	}
	var key string
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		key = raw
	}
	if key == "" {
		return fallback
	}
	return key
}

func mapErr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return rpc.Errorf(rpc.CodeNotFound, "%s not found", fmt.Sprintf(format, args...))
	}
	return err
}
