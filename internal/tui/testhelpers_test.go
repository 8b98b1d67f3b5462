package tui

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/xonecas/arona-chat/internal/backend"
	"github.com/xonecas/arona-chat/internal/config"
	"github.com/xonecas/arona-chat/internal/core"
	"github.com/xonecas/arona-chat/internal/gateway"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/provider"
	"github.com/xonecas/arona-chat/internal/rpc"
	"github.com/xonecas/arona-chat/internal/store"
)

// Test constants for consistent terminal dimensions
const (
	TestTerminalWidth  = 120
	TestTerminalHeight = 40
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// testEnv is the full in-process stack behind a Model.
type testEnv struct {
	db     *store.Store
	mock   *provider.MockProvider
	gw     *gateway.Gateway
	bus    *core.EventBus
	events <-chan core.Event
	deps   Deps
}

// setupTestModel wires a Model to an in-memory store and a mock provider.
func setupTestModel(t *testing.T, mock *provider.MockProvider) (Model, *testEnv) {
	t.Helper()

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if mock == nil {
		mock = provider.NewMock("mock", "Understood, Sensei.")
	}
	cfg := config.DefaultConfig()
	cfg.Chat.Provider = "mock"
	cfg.Providers["mock"] = config.ProviderConfig{Model: "mock-model"}

	registry := provider.NewRegistry()
	registry.RegisterFactory("mock", &provider.MockFactory{Provider: mock})

	d := rpc.NewDispatcher()
	backend.New(db, registry, cfg).Register(d)
	gw := gateway.New(rpc.NewLocal(d))

	bus := core.NewEventBus(0)
	t.Cleanup(bus.Close)
	events := bus.Subscribe()

	st := core.NewStore(gw, bus, core.StoreOptions{})
	msgs := core.NewMessages(gw, st, bus)
	deps := Deps{
		Store:           st,
		Messages:        msgs,
		Coordinator:     core.NewCoordinator(gw, st, msgs, bus),
		Settings:        core.NewSettings(gw, bus, true),
		Events:          events,
		PageSize:        5,
		ScrollThreshold: 3,
	}

	m := New(context.Background(), deps)
	return m, &testEnv{db: db, mock: mock, gw: gw, bus: bus, events: events, deps: deps}
}

// seedConversation persists a conversation with n alternating messages.
func (e *testEnv) seedConversation(t *testing.T, student string, n int) model.Conversation {
	t.Helper()

	conv, err := e.db.CreateConversation(model.ConversationData{Title: model.StringPtr("New Chat"), StudentName: student})
	if err != nil {
		t.Fatalf("CreateConversation() error: %v", err)
	}
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		if _, err := e.db.CreateMessage(model.MessageData{
			ConversationID: conv.ID,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
		}); err != nil {
			t.Fatalf("CreateMessage() error: %v", err)
		}
	}
	return *conv
}

// sizedModel applies a window size to m.
func sizedModel(m Model, width, height int) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return updated.(Model)
}

// testTime returns today at noon so timestamps render as a clock time.
func testTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}

var ansiStripRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiStripRegex.ReplaceAllString(s, "")
}
