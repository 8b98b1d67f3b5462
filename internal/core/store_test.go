package core

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xonecas/arona-chat/internal/model"
)

func newTestStore(t *testing.T) (*Store, *fakeGateway, *EventBus) {
	t.Helper()
	gw := newFakeGateway()
	bus := NewEventBus(0)
	t.Cleanup(bus.Close)
	return NewStore(gw, bus, StoreOptions{}), gw, bus
}

// waitFor returns the first event of type typ published on ch.
func waitFor(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", typ)
		}
	}
}

func assertOrdered(t *testing.T, list []model.ConversationWithStudent) {
	t.Helper()
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.LastMessage == "" {
			require.Empty(t, cur.LastMessage, "entry %d with lastMessage after one without", i)
		}
		if (prev.LastMessage == "") == (cur.LastMessage == "") {
			require.False(t, cur.UpdatedAt.After(prev.UpdatedAt), "updatedAt increases at %d", i)
		}
	}
}

func TestCreateConversationWithPersona(t *testing.T) {
	s, _, bus := newTestStore(t)
	events := bus.Subscribe()

	s.CreateConversationWith(context.Background(), "Hina")

	list := s.Conversations()
	require.Len(t, list, 1)
	assert.Equal(t, "Hina", list[0].StudentName)
	require.NotNil(t, list[0].Title)
	assert.Equal(t, "New Chat", *list[0].Title)
	assert.Equal(t, list[0].ID, s.ActiveConversationID())
	assert.False(t, s.Loading())

	e := waitFor(t, events, EventActiveChanged)
	assert.Equal(t, list[0].ID, e.ConversationID)
	assert.True(t, e.Data.(ActiveData).Navigate)
}

func TestCreateConversationPrependsWithoutSorting(t *testing.T) {
	s, gw, _ := newTestStore(t)
	gw.seedConversation("Aru", 2)
	s.LoadConversations(context.Background())

	s.CreateConversation(context.Background())

	list := s.Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, "AI", list[0].StudentName)
	assert.Empty(t, list[0].LastMessage)
	assert.Equal(t, "Aru", list[1].StudentName)

	s.SortConversations()
	list = s.Conversations()
	assert.Equal(t, "Aru", list[0].StudentName)
	assertOrdered(t, list)
}

func TestCreateConversationFailure(t *testing.T) {
	s, gw, _ := newTestStore(t)
	gw.setErr("CreateConversation", errors.New("backend down"))

	s.CreateConversation(context.Background())

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveConversationID())
	assert.False(t, s.Loading())
	assert.Error(t, s.LastError(CategoryConversation))

	gw.setErr("CreateConversation", nil)
	s.CreateConversation(context.Background())
	assert.Len(t, s.Conversations(), 1)
	assert.NoError(t, s.LastError(CategoryConversation))
}

func TestSortMessagedBeforeNewerEmpty(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	list := []model.ConversationWithStudent{
		{ID: "A", UpdatedAt: t1},
		{ID: "B", UpdatedAt: t0, LastMessage: "hi"},
	}

	sortConversations(list)

	assert.Equal(t, "B", list[0].ID)
	assert.Equal(t, "A", list[1].ID)
}

func TestSortConversationsOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for round := 0; round < 200; round++ {
		n := rng.Intn(12)
		list := make([]model.ConversationWithStudent, n)
		for i := range list {
			list[i].UpdatedAt = base.Add(time.Duration(rng.Intn(50)) * time.Minute)
			if rng.Intn(2) == 0 {
				list[i].LastMessage = "msg"
			}
		}

		sortConversations(list)
		assertOrdered(t, list)

		again := append(list[:0:0], list...)
		sortConversations(again)
		assert.Equal(t, list, again, "sort is not idempotent")
	}
}

func TestLoadConversationsResolvesLastMessage(t *testing.T) {
	s, gw, _ := newTestStore(t)
	withHistory := gw.seedConversation("Hina", 3)
	empty := gw.seedConversation("Aru", 0)

	s.LoadConversations(context.Background())

	list := s.Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, withHistory.ID, list[0].ID)
	assert.Equal(t, "message 2", list[0].LastMessage)
	assert.Equal(t, empty.ID, list[1].ID)
	assert.Empty(t, list[1].LastMessage)
	assert.False(t, s.Loading())
	assert.NoError(t, s.LastError(CategoryConversation))
}

func TestLoadConversationsFailureKeepsPriorList(t *testing.T) {
	s, gw, _ := newTestStore(t)
	gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())
	before := s.Conversations()
	require.Len(t, before, 1)

	gw.seedConversation("Aru", 1)
	gw.setErr("ListMessages", errors.New("history unavailable"))
	s.LoadConversations(context.Background())

	assert.Equal(t, before, s.Conversations())
	assert.False(t, s.Loading())
	assert.Error(t, s.LastError(CategoryConversation))

	gw.setErr("ListMessages", nil)
	gw.setErr("ListConversations", errors.New("list unavailable"))
	s.LoadConversations(context.Background())
	assert.Equal(t, before, s.Conversations())
	assert.False(t, s.Loading())
}

func TestLoadingFlagEvents(t *testing.T) {
	s, gw, bus := newTestStore(t)
	events := bus.Subscribe()
	gw.setErr("ListConversations", errors.New("boom"))

	s.LoadConversations(context.Background())

	var got []EventType
	for len(events) > 0 {
		e := <-events
		got = append(got, e.Type)
		if e.Type == EventError {
			assert.Equal(t, CategoryConversation, e.Data.(ErrorData).Category)
		}
	}
	assert.Equal(t, []EventType{EventLoadingChanged, EventError, EventLoadingChanged}, got)
	assert.False(t, s.Loading())
}

func TestEnsureLoaded(t *testing.T) {
	s, gw, _ := newTestStore(t)
	gw.seedConversation("Hina", 1)

	s.EnsureLoaded(context.Background())
	require.Len(t, s.Conversations(), 1)

	gw.seedConversation("Aru", 1)
	s.EnsureLoaded(context.Background())
	assert.Len(t, s.Conversations(), 1)
}

func TestDeleteActiveConversation(t *testing.T) {
	s, gw, bus := newTestStore(t)
	other := gw.seedConversation("Aru", 1)
	s.LoadConversations(context.Background())
	s.CreateConversationWith(context.Background(), "Hina")
	active := s.ActiveConversationID()
	require.NotEmpty(t, active)
	events := bus.Subscribe()

	s.DeleteConversation(context.Background(), active)

	assert.Empty(t, s.ActiveConversationID())
	list := s.Conversations()
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	e := waitFor(t, events, EventActiveChanged)
	assert.Empty(t, e.ConversationID)
	assert.Equal(t, active, e.Data.(ActiveData).PreviousID)
}

func TestDeleteInactiveKeepsSelection(t *testing.T) {
	s, gw, _ := newTestStore(t)
	a := gw.seedConversation("Aru", 1)
	b := gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())
	s.SetActiveConversation(b.ID)

	s.DeleteConversation(context.Background(), a.ID)

	assert.Equal(t, b.ID, s.ActiveConversationID())
	assert.Len(t, s.Conversations(), 1)
}

func TestDeleteFailureLeavesState(t *testing.T) {
	s, gw, _ := newTestStore(t)
	conv := gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())
	s.SetActiveConversation(conv.ID)

	s.DeleteConversation(context.Background(), "missing")

	assert.Len(t, s.Conversations(), 1)
	assert.Equal(t, conv.ID, s.ActiveConversationID())
	assert.Error(t, s.LastError(CategoryConversation))
}

func TestUpdateConversationKeepsLocalFields(t *testing.T) {
	s, gw, _ := newTestStore(t)
	conv := gw.seedConversation("Hina", 2)
	s.LoadConversations(context.Background())
	s.RefreshConversation(context.Background(), conv.ID)

	s.UpdateConversation(context.Background(), conv.ID, model.ConversationUpdate{Title: model.StringPtr("Patrol report")})

	entry, ok := findConversation(s, conv.ID)
	require.True(t, ok)
	assert.Equal(t, "Patrol report", *entry.Title)
	assert.Equal(t, "message 1", entry.LastMessage)
	require.NotNil(t, entry.Student)
	assert.Equal(t, "Hina", entry.Student.Name)
}

func TestUpdateConversationFailure(t *testing.T) {
	s, gw, _ := newTestStore(t)
	conv := gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())
	before := s.Conversations()

	gw.setErr("UpdateConversation", errors.New("boom"))
	s.UpdateConversation(context.Background(), conv.ID, model.ConversationUpdate{Title: model.StringPtr("x")})

	assert.Equal(t, before, s.Conversations())
	assert.Error(t, s.LastError(CategoryConversation))
}

func TestRefreshConversationDropsDeleted(t *testing.T) {
	s, gw, _ := newTestStore(t)
	conv := gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())
	s.SetActiveConversation(conv.ID)

	_, err := gw.DeleteConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	s.RefreshConversation(context.Background(), conv.ID)

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveConversationID())
}

func TestSetAndCloseConversation(t *testing.T) {
	s, gw, _ := newTestStore(t)
	conv := gw.seedConversation("Hina", 1)
	s.LoadConversations(context.Background())

	s.SetActiveConversation(conv.ID)
	active, ok := s.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, conv.ID, active.ID)

	s.CloseConversation()
	assert.Empty(t, s.ActiveConversationID())
	_, ok = s.ActiveConversation()
	assert.False(t, ok)
	assert.Len(t, s.Conversations(), 1)
}

func TestStreamingFlagIsExclusive(t *testing.T) {
	s, _, _ := newTestStore(t)

	require.True(t, s.beginStreaming("a"))
	assert.True(t, s.Streaming())
	assert.False(t, s.beginStreaming("b"))

	s.endStreaming("a")
	assert.False(t, s.Streaming())
	assert.True(t, s.beginStreaming("b"))
}

func findConversation(s *Store, id string) (model.ConversationWithStudent, bool) {
	for _, c := range s.Conversations() {
		if c.ID == id {
			return c, true
		}
	}
	return model.ConversationWithStudent{}, false
}
