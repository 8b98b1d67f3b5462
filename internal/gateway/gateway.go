// Package gateway is the typed client façade over the backend commands.
// It holds no state of its own.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/rpc"
)

// ErrNotFound matches failures of calls addressed to an unknown identifier.
var ErrNotFound = errors.New("not found")

// RemoteError wraps any failed call: transport, serialization or a fault
// reported by the backend.
type RemoteError struct {
	Op   string
	Code rpc.Code
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is reports NotFound-coded errors as ErrNotFound.
func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.Code == rpc.CodeNotFound
}

// Gateway issues backend commands through an rpc.Invoker.
type Gateway struct {
	inv rpc.Invoker
}

// New creates a gateway over inv.
func New(inv rpc.Invoker) *Gateway {
	return &Gateway{inv: inv}
}

// call invokes method and wraps failures. Caller cancellation is returned
// unwrapped so it stays distinguishable from remote faults.
func (g *Gateway) call(ctx context.Context, method string, params, result any) error {
	err := g.inv.Invoke(ctx, method, params, result)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}

	remote := &RemoteError{Op: method, Err: err}
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		remote.Code = rpcErr.Code
	}
	return remote
}

// ListConversations returns every conversation, unsorted and without lastMessage.
func (g *Gateway) ListConversations(ctx context.Context) ([]model.ConversationWithStudent, error) {
	var out []model.ConversationWithStudent
	if err := g.call(ctx, model.CmdGetConversations, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation returns nil, nil when id is unknown.
func (g *Gateway) GetConversation(ctx context.Context, id string) (*model.ConversationWithStudent, error) {
	var out *model.ConversationWithStudent
	err := g.call(ctx, model.CmdGetConversationByID, model.IDParams{ID: id}, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) CreateConversation(ctx context.Context, data model.ConversationData) (model.Conversation, error) {
	var out model.Conversation
	err := g.call(ctx, model.CmdCreateConversation, model.CreateConversationParams{Data: data}, &out)
	return out, err
}

// UpdateConversation fails with ErrNotFound for unknown ids.
func (g *Gateway) UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) (model.Conversation, error) {
	var out model.Conversation
	err := g.call(ctx, model.CmdUpdateConversation, model.UpdateConversationParams{ID: id, Data: update}, &out)
	return out, err
}

// DeleteConversation returns the deleted record. Its messages go with it.
func (g *Gateway) DeleteConversation(ctx context.Context, id string) (model.Conversation, error) {
	var out model.Conversation
	err := g.call(ctx, model.CmdDeleteConversation, model.IDParams{ID: id}, &out)
	return out, err
}

// ListMessages returns the full history in ascending index order.
func (g *Gateway) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	if err := g.call(ctx, model.CmdGetMessages, model.ConversationMessagesParams{ConversationID: conversationID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessagesPage returns up to pageSize messages. page is 1-indexed; a page
// past the end is empty.
func (g *Gateway) ListMessagesPage(ctx context.Context, conversationID string, page, pageSize int) ([]model.Message, error) {
	var out []model.Message
	err := g.call(ctx, model.CmdGetMessagesWithPagination, model.MessagesPageParams{
		ConversationID: conversationID,
		Page:           page,
		PageSize:       pageSize,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) CreateMessage(ctx context.Context, data model.MessageData) (model.Message, error) {
	var out model.Message
	err := g.call(ctx, model.CmdCreateMessage, model.CreateMessageParams{Data: data}, &out)
	return out, err
}

// ChatCompletion submits the latest user message and returns the finished
// assistant reply. Cancel ctx to abandon it.
func (g *Gateway) ChatCompletion(ctx context.Context, message model.Message, conversationID string) (model.Message, error) {
	var out model.Message
	err := g.call(ctx, model.CmdChatWithLLM, model.ChatParams{Message: message, ConversationID: conversationID}, &out)
	return out, err
}

// SetStore persists a client setting.
func (g *Gateway) SetStore(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return g.call(ctx, model.CmdSetStore, model.SetStoreParams{Key: key, Value: raw}, nil)
}

// GetStore decodes a client setting into out and reports whether it was set.
func (g *Gateway) GetStore(ctx context.Context, key string, out any) (bool, error) {
	var v model.StoreValue
	if err := g.call(ctx, model.CmdGetStore, model.GetStoreParams{Key: key}, &v); err != nil {
		return false, err
	}
	if !v.Found || len(v.Value) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(v.Value, out); err != nil {
		return false, &RemoteError{Op: model.CmdGetStore, Code: rpc.CodeInternal, Err: fmt.Errorf("decode %s: %w", key, err)}
	}
	return true, nil
}
