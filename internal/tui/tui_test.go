package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xonecas/arona-chat/internal/core"
	"github.com/xonecas/arona-chat/internal/model"
)

type fakeViewport struct {
	height, top, client int
}

func (v *fakeViewport) ScrollHeight() int        { return v.height }
func (v *fakeViewport) ScrollTop() int           { return v.top }
func (v *fakeViewport) ClientHeight() int        { return v.client }
func (v *fakeViewport) ScrollTo(top int, _ bool) { v.top = top }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// runPages executes fetch commands until the model stops asking for more.
func runPages(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 50 {
			t.Fatal("page fetching did not settle")
		}
		msg := cmd()
		if _, ok := msg.(pageFetchedMsg); !ok {
			t.Fatalf("unexpected message %T", msg)
		}
		m, cmd = update(t, m, msg)
	}
	return m
}

func testMessages(id string, from, n int) []model.Message {
	msgs := make([]model.Message, n)
	for i := range msgs {
		msgs[i] = model.Message{
			ConversationID: id,
			Role:           model.RoleUser,
			Content:        fmt.Sprintf("line %d", from+i),
			Index:          from + i,
			CreatedAt:      testTime(),
		}
	}
	return msgs
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "hello world", 20, []string{"hello world"}},
		{"wraps on words", "hello brave new world", 11, []string{"hello brave", "new world"}},
		{"keeps paragraphs", "one\n\ntwo", 10, []string{"one", "", "two"}},
		{"hard wraps long words", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"wide runes", "こんにちは", 4, []string{"こん", "にち", "は"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
			for _, line := range got {
				if w := lipgloss.Width(line); w > tt.width {
					t.Errorf("line %q is %d columns wide, max %d", line, w, tt.width)
				}
			}
		})
	}
}

func TestRenderScrollbar(t *testing.T) {
	t.Run("short content is all track", func(t *testing.T) {
		bar := renderScrollbar(&fakeViewport{height: 3, client: 5})
		if strings.Contains(bar, scrollbarThumb) {
			t.Errorf("expected no thumb, got %q", bar)
		}
		if got := len(strings.Split(bar, "\n")); got != 5 {
			t.Errorf("rows = %d, want 5", got)
		}
	})

	t.Run("thumb follows offset", func(t *testing.T) {
		top := strings.Split(renderScrollbar(&fakeViewport{height: 100, top: 0, client: 10}), "\n")
		bottom := strings.Split(renderScrollbar(&fakeViewport{height: 100, top: 90, client: 10}), "\n")
		if !strings.Contains(top[0], scrollbarThumb) {
			t.Errorf("thumb should start at the top, got %q", top)
		}
		if !strings.Contains(bottom[9], scrollbarThumb) {
			t.Errorf("thumb should end at the bottom, got %q", bottom)
		}
	})

	t.Run("zero height renders nothing", func(t *testing.T) {
		if bar := renderScrollbar(&fakeViewport{height: 10}); bar != "" {
			t.Errorf("expected empty bar, got %q", bar)
		}
	})
}

func TestInputHistory(t *testing.T) {
	input := NewInputModel()
	input.AddToHistory("first")
	input.AddToHistory("second")
	input.AddToHistory("second")
	input.SetMode(InputModeMessage, "conv-1")
	input.SetValue("draft")

	up := tea.KeyMsg{Type: tea.KeyUp}
	down := tea.KeyMsg{Type: tea.KeyDown}

	input, _ = input.Update(up)
	if input.Value() != "second" {
		t.Errorf("after up = %q, want %q", input.Value(), "second")
	}
	input, _ = input.Update(up)
	if input.Value() != "first" {
		t.Errorf("after up up = %q, want %q", input.Value(), "first")
	}
	input, _ = input.Update(up)
	if input.Value() != "first" {
		t.Errorf("history should stop at the oldest entry, got %q", input.Value())
	}
	input, _ = input.Update(down)
	input, _ = input.Update(down)
	if input.Value() != "draft" {
		t.Errorf("draft not restored, got %q", input.Value())
	}
}

func TestInputModes(t *testing.T) {
	input := NewInputModel()
	if input.IsActive() {
		t.Fatal("new input should be inactive")
	}

	input.SetMode(InputModeRename, "conv-1")
	if !input.IsActive() || input.TargetID() != "conv-1" {
		t.Errorf("rename mode: active=%v target=%q", input.IsActive(), input.TargetID())
	}

	input.Reset()
	if input.IsActive() || input.Mode() != InputModeNone || input.TargetID() != "" {
		t.Errorf("reset left mode=%v target=%q", input.Mode(), input.TargetID())
	}
}

func TestInputMasksAPIKey(t *testing.T) {
	input := NewInputModel()
	input.SetWidth(80)
	input.SetMode(InputModeAPIKey, "")
	input.SetValue("sk-secret")

	if input.Value() != "sk-secret" {
		t.Errorf("Value() = %q", input.Value())
	}
	if view := input.View(80, ""); strings.Contains(view, "sk-secret") {
		t.Errorf("API key rendered in clear: %q", view)
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := testTime()
	if got := formatTimestamp(now.Add(-time.Hour), now); got != "11:00" {
		t.Errorf("same day = %q, want 11:00", got)
	}
	earlier := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.Local)
	if got := formatTimestamp(earlier, now); got != "Mar 04" {
		t.Errorf("other day = %q, want Mar 04", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a longer title", 8, "a lon..."},
		{"abc", 0, ""},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateWithEllipsis(tt.in, tt.width); got != tt.want {
			t.Errorf("truncateWithEllipsis(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		if w := lipgloss.Width(truncateWithEllipsis(tt.in, tt.width)); w > tt.width {
			t.Errorf("truncateWithEllipsis(%q, %d) is %d wide", tt.in, tt.width, w)
		}
	}
}

func TestRenderConversationList(t *testing.T) {
	now := testTime()

	t.Run("empty", func(t *testing.T) {
		out := stripANSI(RenderConversationList(nil, 0, "", TestTerminalWidth, 20, now))
		if !strings.Contains(out, "No conversations yet") {
			t.Errorf("missing empty hint:\n%s", out)
		}
	})

	t.Run("entries", func(t *testing.T) {
		convs := []model.ConversationWithStudent{
			{ID: "a", Title: model.StringPtr("Homework"), StudentName: "Hina", UpdatedAt: now, LastMessage: "See you\ntomorrow"},
			{ID: "b", StudentName: "Arona", UpdatedAt: now.Add(-time.Minute)},
		}
		out := stripANSI(RenderConversationList(convs, 1, "a", TestTerminalWidth, 20, now))
		for _, want := range []string{"CONVERSATIONS", "Homework", "Hina", "Arona", "See you tomorrow", "●"} {
			if !strings.Contains(out, want) {
				t.Errorf("list missing %q:\n%s", want, out)
			}
		}
	})
}

func TestRenderMessages(t *testing.T) {
	now := testTime()
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "Good morning", CreatedAt: now},
		{Role: model.RoleAssistant, Content: "Morning, Sensei!", CreatedAt: now},
	}

	out := stripANSI(renderMessages(msgs, "Hina", 60, true, now))
	for _, want := range []string{"Sensei 12:00", "Good morning", "Hina 12:00", "Morning, Sensei!", "Hina is typing..."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	if out := stripANSI(renderMessages(nil, "Hina", 60, false, now)); !strings.Contains(out, "No messages yet") {
		t.Errorf("missing empty hint: %q", out)
	}
}

func TestAPIKeyWarning(t *testing.T) {
	m, _ := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)

	m.handleEvent(core.Event{Type: core.EventSettingsLoaded, Data: core.SettingsData{APIKeyPresent: false}})
	if !strings.Contains(stripANSI(m.View()), "API key missing") {
		t.Error("expected API key warning in status bar")
	}

	m.handleEvent(core.Event{Type: core.EventSettingsLoaded, Data: core.SettingsData{APIKeyPresent: true}})
	if strings.Contains(stripANSI(m.View()), "API key missing") {
		t.Error("warning should clear once a key is present")
	}
}

func TestErrorEventShownInStatusBar(t *testing.T) {
	m, _ := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)

	m.handleEvent(core.Event{Type: core.EventError, Data: core.ErrorData{
		Category: core.CategoryStreaming,
		Op:       "chat completion",
		Err:      errors.New("provider down"),
	}})
	if !strings.Contains(stripANSI(m.View()), "chat completion: provider down") {
		t.Errorf("error not rendered:\n%s", stripANSI(m.View()))
	}
}

func TestNavigateLoadsAllPages(t *testing.T) {
	m, env := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)
	conv := env.seedConversation(t, "Hina", 12)

	env.deps.Store.LoadConversations(context.Background())
	m.refreshConversations()

	cmd := m.handleEvent(core.Event{
		Type:           core.EventActiveChanged,
		ConversationID: conv.ID,
		Data:           core.ActiveData{Navigate: true},
	})
	if m.view != ViewChat {
		t.Fatalf("view = %v, want ViewChat", m.view)
	}
	if m.activeID != conv.ID {
		t.Fatalf("activeID = %q, want %q", m.activeID, conv.ID)
	}
	m = runPages(t, m, cmd)

	if got := len(env.deps.Messages.Messages(conv.ID)); got != 12 {
		t.Errorf("loaded %d messages, want 12", got)
	}
	if env.deps.Messages.HasMore(conv.ID) {
		t.Error("cursor should be exhausted")
	}
}

func TestCloseReturnsToList(t *testing.T) {
	m, env := setupTestModel(t, nil)
	conv := env.seedConversation(t, "Hina", 2)
	env.deps.Store.LoadConversations(context.Background())
	m.refreshConversations()

	m.handleEvent(core.Event{Type: core.EventActiveChanged, ConversationID: conv.ID, Data: core.ActiveData{Navigate: true}})
	m.handleEvent(core.Event{Type: core.EventActiveChanged, Data: core.ActiveData{PreviousID: conv.ID}})

	if m.view != ViewConversations {
		t.Errorf("view = %v, want ViewConversations", m.view)
	}
	if m.activeID != "" {
		t.Errorf("activeID = %q, want empty", m.activeID)
	}
}

func TestMessagesFollowBottom(t *testing.T) {
	m, env := setupTestModel(t, nil)
	m = sizedModel(m, 80, 20)
	id := "conv-1"
	m.activeID = id

	first := testMessages(id, 0, 30)
	env.deps.Messages.Append(id, first...)
	m.handleEvent(core.Event{Type: core.EventMessagesChanged, ConversationID: id, Data: core.MessagesData{Added: first, Page: 2}})
	if !m.vp.AtBottom() {
		t.Fatalf("first page should scroll to the bottom, offset %d", m.vp.YOffset)
	}

	// Scrolled up: new messages do not move the view
	m.vp.GotoTop()
	more := testMessages(id, 30, 1)
	env.deps.Messages.Append(id, more...)
	m.handleEvent(core.Event{Type: core.EventMessagesChanged, ConversationID: id, Data: core.MessagesData{Added: more, Page: 2, Appended: true}})
	if m.vp.YOffset != 0 {
		t.Errorf("offset = %d, want 0 while scrolled up", m.vp.YOffset)
	}

	// Back at the bottom: appended messages are followed
	m.vp.GotoBottom()
	more = testMessages(id, 31, 1)
	env.deps.Messages.Append(id, more...)
	m.handleEvent(core.Event{Type: core.EventMessagesChanged, ConversationID: id, Data: core.MessagesData{Added: more, Page: 2, Appended: true}})
	if !m.vp.AtBottom() {
		t.Errorf("appended message not followed, offset %d", m.vp.YOffset)
	}
	if m.queue.Pending() != 0 {
		t.Errorf("queue has %d pending tasks after render", m.queue.Pending())
	}
}

func TestMessagesForOtherConversationIgnored(t *testing.T) {
	m, env := setupTestModel(t, nil)
	m = sizedModel(m, 80, 20)
	m.activeID = "conv-1"

	other := testMessages("conv-2", 0, 3)
	env.deps.Messages.Append("conv-2", other...)
	m.handleEvent(core.Event{Type: core.EventMessagesChanged, ConversationID: "conv-2", Data: core.MessagesData{Added: other, Page: 2}})

	if strings.Contains(m.vp.View(), "line 0") {
		t.Error("rendered messages of an inactive conversation")
	}
	if m.queue.Pending() != 0 {
		t.Error("queued a scroll for an inactive conversation")
	}
}

func TestListKeys(t *testing.T) {
	m, env := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)

	m, _ = update(t, m, runes("N"))
	if m.input.Mode() != InputModeNewConversation {
		t.Fatalf("mode = %v, want InputModeNewConversation", m.input.Mode())
	}
	m, _ = update(t, m, runes("Hina"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.input.IsActive() {
		t.Error("input should reset after submit")
	}
	if cmd == nil {
		t.Fatal("expected a create command")
	}
	cmd()

	convs := env.deps.Store.Conversations()
	if len(convs) != 1 || convs[0].StudentName != "Hina" {
		t.Fatalf("conversations = %+v, want one with Hina", convs)
	}
	if env.deps.Store.ActiveConversationID() != convs[0].ID {
		t.Error("new conversation should be active")
	}
}

func TestEmptyMessageNotSent(t *testing.T) {
	m, _ := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)
	m.view = ViewChat
	m.activeID = "conv-1"

	m, _ = update(t, m, runes("i"))
	if m.input.Mode() != InputModeMessage {
		t.Fatalf("mode = %v, want InputModeMessage", m.input.Mode())
	}
	m, _ = update(t, m, runes("   "))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank message should not be submitted")
	}
	if m.input.IsActive() {
		t.Error("input should close on blank submit")
	}
}

func TestHelpToggle(t *testing.T) {
	m, _ := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)

	m, _ = update(t, m, runes("?"))
	if !m.showHelp {
		t.Fatal("help should be shown")
	}
	if !strings.Contains(stripANSI(m.View()), "Keyboard Shortcuts") {
		t.Error("help overlay not rendered")
	}
	m, _ = update(t, m, runes("x"))
	if m.showHelp {
		t.Error("any key should dismiss help")
	}
}

func TestViewBeforeResize(t *testing.T) {
	m, _ := setupTestModel(t, nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestViewFitsTerminal(t *testing.T) {
	m, env := setupTestModel(t, nil)
	m = sizedModel(m, TestTerminalWidth, TestTerminalHeight)
	conv := env.seedConversation(t, "Hina", 40)
	env.deps.Store.LoadConversations(context.Background())
	m.refreshConversations()

	for _, view := range []string{"list", "chat"} {
		if view == "chat" {
			m = runPages(t, m, m.handleEvent(core.Event{
				Type:           core.EventActiveChanged,
				ConversationID: conv.ID,
				Data:           core.ActiveData{Navigate: true},
			}))
		}
		out := m.View()
		if h := lipgloss.Height(out); h > TestTerminalHeight {
			t.Errorf("%s view is %d rows, terminal has %d", view, h, TestTerminalHeight)
		}
		if w := lipgloss.Width(out); w > TestTerminalWidth {
			t.Errorf("%s view is %d columns, terminal has %d", view, w, TestTerminalWidth)
		}
	}
}
