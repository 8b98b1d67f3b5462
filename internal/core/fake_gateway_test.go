package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xonecas/arona-chat/internal/gateway"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/rpc"
)

// fakeGateway is an in-memory backend. Each write advances a fake clock by
// one second so ordering by updatedAt is deterministic.
type fakeGateway struct {
	mu       sync.Mutex
	clock    time.Time
	convs    []model.Conversation
	msgs     map[string][]model.Message
	settings map[string]json.RawMessage
	nextID   int64
	seq      int

	// errs makes the named method fail.
	errs map[string]error
	// reply is the assistant content returned by ChatCompletion.
	reply string
	// replyIndex overrides the index of the returned reply when set.
	replyIndex *int
	// chatStarted receives a value when ChatCompletion begins waiting.
	chatStarted chan struct{}
	// chatRelease, when set, holds ChatCompletion until closed or ctx ends.
	chatRelease chan struct{}
	// createStarted receives a value once CreateMessage has stored the message.
	createStarted chan struct{}
	// createRelease, when set, holds CreateMessage after the store until
	// closed or ctx ends.
	createRelease chan struct{}

	pageCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		clock:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		msgs:        make(map[string][]model.Message),
		settings:    make(map[string]json.RawMessage),
		errs:        make(map[string]error),
		reply:       "Understood, Sensei.",
		chatStarted:   make(chan struct{}, 1),
		createStarted: make(chan struct{}, 1),
	}
}

func (f *fakeGateway) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeGateway) fail(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

func (f *fakeGateway) setErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

func (f *fakeGateway) notFound(op string) error {
	return &gateway.RemoteError{Op: op, Code: rpc.CodeNotFound, Err: fmt.Errorf("unknown id")}
}

// seedConversation adds a conversation with n user messages.
func (f *fakeGateway) seedConversation(student string, n int) model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := f.tick()
	conv := model.Conversation{
		ID:          fmt.Sprintf("conv-%d", f.seq),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       model.StringPtr("New Chat"),
		StudentName: student,
	}
	f.convs = append(f.convs, conv)
	for i := 0; i < n; i++ {
		f.appendLocked(conv.ID, model.RoleUser, fmt.Sprintf("message %d", i))
	}
	return conv
}

func (f *fakeGateway) appendLocked(convID string, role model.Role, content string) model.Message {
	f.nextID++
	now := f.tick()
	msgs := f.msgs[convID]
	index := 0
	if n := len(msgs); n > 0 {
		index = msgs[n-1].Index + 1
	}
	msg := model.Message{
		ID:             f.nextID,
		ConversationID: convID,
		Role:           role,
		Content:        content,
		Index:          index,
		CreatedAt:      now,
	}
	f.msgs[convID] = append(msgs, msg)
	for i := range f.convs {
		if f.convs[i].ID == convID {
			f.convs[i].UpdatedAt = now
		}
	}
	return msg
}

func (f *fakeGateway) persisted(convID string) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.msgs[convID]...)
}

func (f *fakeGateway) find(id string) int {
	for i := range f.convs {
		if f.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeGateway) ListConversations(ctx context.Context) ([]model.ConversationWithStudent, error) {
	if err := f.fail("ListConversations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ConversationWithStudent, 0, len(f.convs))
	for _, c := range f.convs {
		out = append(out, c.WithStudent())
	}
	return out, nil
}

func (f *fakeGateway) GetConversation(ctx context.Context, id string) (*model.ConversationWithStudent, error) {
	if err := f.fail("GetConversation"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.find(id)
	if idx < 0 {
		return nil, nil
	}
	c := f.convs[idx].WithStudent()
	c.Student = &model.Student{Name: c.StudentName, Prompt: "You are " + c.StudentName + "."}
	return &c, nil
}

func (f *fakeGateway) CreateConversation(ctx context.Context, data model.ConversationData) (model.Conversation, error) {
	if err := f.fail("CreateConversation"); err != nil {
		return model.Conversation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := f.tick()
	conv := model.Conversation{
		ID:          fmt.Sprintf("conv-%d", f.seq),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       data.Title,
		StudentName: data.StudentName,
	}
	f.convs = append(f.convs, conv)
	return conv, nil
}

func (f *fakeGateway) UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) (model.Conversation, error) {
	if err := f.fail("UpdateConversation"); err != nil {
		return model.Conversation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.find(id)
	if idx < 0 {
		return model.Conversation{}, f.notFound(model.CmdUpdateConversation)
	}
	if update.Title != nil {
		f.convs[idx].Title = update.Title
	}
	f.convs[idx].UpdatedAt = f.tick()
	return f.convs[idx], nil
}

func (f *fakeGateway) DeleteConversation(ctx context.Context, id string) (model.Conversation, error) {
	if err := f.fail("DeleteConversation"); err != nil {
		return model.Conversation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.find(id)
	if idx < 0 {
		return model.Conversation{}, f.notFound(model.CmdDeleteConversation)
	}
	conv := f.convs[idx]
	f.convs = append(f.convs[:idx], f.convs[idx+1:]...)
	delete(f.msgs, id)
	return conv, nil
}

func (f *fakeGateway) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if err := f.fail("ListMessages"); err != nil {
		return nil, err
	}
	return f.persisted(conversationID), nil
}

func (f *fakeGateway) ListMessagesPage(ctx context.Context, conversationID string, page, pageSize int) ([]model.Message, error) {
	if err := f.fail("ListMessagesPage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	all := f.msgs[conversationID]
	start := (page - 1) * pageSize
	if page < 1 || pageSize < 1 || start >= len(all) {
		return []model.Message{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return append([]model.Message(nil), all[start:end]...), nil
}

func (f *fakeGateway) CreateMessage(ctx context.Context, data model.MessageData) (model.Message, error) {
	if err := f.fail("CreateMessage"); err != nil {
		return model.Message{}, err
	}
	f.mu.Lock()
	if f.find(data.ConversationID) < 0 {
		f.mu.Unlock()
		return model.Message{}, f.notFound(model.CmdCreateMessage)
	}
	msg := f.appendLocked(data.ConversationID, data.Role, data.Content)
	release := f.createRelease
	f.mu.Unlock()

	select {
	case f.createStarted <- struct{}{}:
	default:
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		}
	}
	return msg, nil
}

func (f *fakeGateway) ChatCompletion(ctx context.Context, message model.Message, conversationID string) (model.Message, error) {
	if err := f.fail("ChatCompletion"); err != nil {
		return model.Message{}, err
	}

	f.mu.Lock()
	release := f.chatRelease
	f.mu.Unlock()

	select {
	case f.chatStarted <- struct{}{}:
	default:
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	reply := f.appendLocked(conversationID, model.RoleAssistant, f.reply)
	if f.replyIndex != nil {
		reply.Index = *f.replyIndex
	}
	return reply, nil
}

func (f *fakeGateway) SetStore(ctx context.Context, key string, value any) error {
	if err := f.fail("SetStore"); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = raw
	return nil
}

func (f *fakeGateway) GetStore(ctx context.Context, key string, out any) (bool, error) {
	if err := f.fail("GetStore"); err != nil {
		return false, err
	}
	f.mu.Lock()
	raw, ok := f.settings[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

var _ Gateway = (*fakeGateway)(nil)
var _ Gateway = (*gateway.Gateway)(nil)
