// Package tui provides the terminal user interface for Arona Chat.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/core"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/scroll"
)

// View represents the current view mode.
type View int

const (
	ViewConversations View = iota
	ViewChat
)

// Deps are the state objects the UI drives.
type Deps struct {
	Store       *core.Store
	Messages    *core.Messages
	Coordinator *core.Coordinator
	Settings    *core.Settings
	Events      <-chan core.Event

	PageSize        int
	ScrollThreshold int
	DefaultPersona  string
}

// Model is the main TUI model.
type Model struct {
	ctx      context.Context
	store    *core.Store
	messages *core.Messages
	coord    *core.Coordinator
	settings *core.Settings
	eventCh  <-chan core.Event

	pageSize       int
	defaultPersona string

	view        View
	width       int
	height      int
	selectedIdx int
	showHelp    bool

	input    InputModel
	net      NetIndicator
	vp       *viewport.Model
	queue    *scroll.Queue
	scroller *scroll.Controller

	conversations []model.ConversationWithStudent
	activeID      string
	loading       bool
	streaming     bool
	streamingID   string
	apiKeyMissing bool

	err error

	now func() time.Time
}

// EventMsg wraps a core event for the TUI.
type EventMsg struct {
	Event core.Event
}

type pageFetchedMsg struct {
	conversationID string
	count          int
	err            error
}

type submitDoneMsg struct {
	err error
}

type settingsMsg struct {
	err error
}

// New creates a new TUI model. ctx bounds every backend call the UI makes.
func New(ctx context.Context, deps Deps) Model {
	if deps.PageSize < 1 {
		deps.PageSize = constants.DefaultPageSize
	}
	if deps.DefaultPersona == "" {
		deps.DefaultPersona = constants.DefaultPersona
	}

	vp := viewport.New(0, 0)
	registry := scroll.NewRegistry()
	registry.Register(chatViewportID, scroll.BubblesViewport{Model: &vp})
	queue := &scroll.Queue{}

	return Model{
		ctx:            ctx,
		store:          deps.Store,
		messages:       deps.Messages,
		coord:          deps.Coordinator,
		settings:       deps.Settings,
		eventCh:        deps.Events,
		pageSize:       deps.PageSize,
		defaultPersona: deps.DefaultPersona,
		view:           ViewConversations,
		input:          NewInputModel(),
		net:            NewNetIndicator(),
		vp:             &vp,
		queue:          queue,
		scroller:       scroll.NewController(registry, chatViewportID, queue, deps.ScrollThreshold),
		now:            time.Now,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.listenForEvents(),
		m.loadConversations(),
		m.loadSettings(),
		m.net.Init(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		m.resizeViewport()
		m.renderMessages()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.ForceQuit) {
			m.coord.Cancel()
			return m, tea.Quit
		}
		if m.input.IsActive() {
			return m.handleInputKey(msg)
		}

		if key.Matches(msg, keys.Help) {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		if key.Matches(msg, keys.Quit) {
			m.coord.Cancel()
			return m, tea.Quit
		}

		if m.view == ViewChat {
			return m.handleChatKey(msg)
		}
		return m.handleListKey(msg)

	case EventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, m.listenForEvents())

	case pageFetchedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("load history: %w", msg.err)
			return m, nil
		}
		// Keep fetching until the cursor is exhausted
		if msg.conversationID == m.activeID && m.view == ViewChat && m.messages.HasMore(msg.conversationID) {
			return m, m.fetchPage(msg.conversationID)
		}
		return m, nil

	case submitDoneMsg:
		switch {
		case msg.err == nil:
			m.err = nil
		case errors.Is(msg.err, core.ErrCancelled):
			m.err = nil
		default:
			m.err = msg.err
		}
		return m, nil

	case settingsMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case NetIndicatorTickMsg:
		var cmd tea.Cmd
		m.net, cmd = m.net.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return RenderHelp(m.width, m.height)
	}

	var content string
	hint := "[ i ] WRITE  ·  [ ctrl+x ] STOP  ·  [ esc ] BACK  ·  [ ? ] HELP"
	if m.view == ViewChat {
		conv := m.activeConversation()
		content = RenderChatView(conv, m.vp, m.width, m.messages.HasMore(m.activeID))
	} else {
		content = RenderConversationList(m.conversations, m.selectedIdx, m.activeID, m.width, m.height-4, m.now())
		hint = "[ n ] NEW  ·  [ enter ] OPEN  ·  [ d ] DELETE  ·  [ ? ] HELP"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		content,
		m.input.View(m.width, hint),
		m.renderStatusBar(),
	)
}

// chromeHeight is the number of rows around the message viewport: banner,
// section title, chat border (2), input (3) and status bar.
const chromeHeight = 8

func (m *Model) resizeViewport() {
	m.vp.Width = m.width - 6
	m.vp.Height = m.height - chromeHeight
	if m.vp.Height < 3 {
		m.vp.Height = 3
	}
}

func (m Model) renderStatusBar() string {
	var parts []string
	parts = append(parts, m.net.View())

	if m.apiKeyMissing {
		parts = append(parts, warningStyle.Render("⚠ API key missing, press K to set it"))
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(truncateWithEllipsis("✖ "+m.err.Error(), m.width/2)))
	}
	return statusBarStyle.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, ok := m.selected()

	switch {
	case key.Matches(msg, keys.Up), key.Matches(msg, keys.ShiftTab):
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case key.Matches(msg, keys.Down), key.Matches(msg, keys.Tab):
		if m.selectedIdx < len(m.conversations)-1 {
			m.selectedIdx++
		}

	case key.Matches(msg, keys.Enter):
		if ok {
			return m, m.setActive(selected.ID)
		}

	case key.Matches(msg, keys.New):
		return m, m.createConversation(m.defaultPersona)

	case key.Matches(msg, keys.NewWith):
		m.input.SetMode(InputModeNewConversation, "")

	case key.Matches(msg, keys.Delete):
		if ok {
			return m, m.deleteConversation(selected.ID)
		}

	case key.Matches(msg, keys.Rename):
		if ok {
			m.input.SetMode(InputModeRename, selected.ID)
			m.input.SetValue(selected.DisplayTitle())
		}

	case key.Matches(msg, keys.APIKey):
		m.input.SetMode(InputModeAPIKey, "")
	}

	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		if m.streaming && m.streamingID == m.activeID {
			m.coord.Cancel()
		}
		return m, m.closeConversation()

	case key.Matches(msg, keys.Cancel):
		if !m.coord.Cancel() {
			log.Debug().Msg("nothing to cancel")
		}

	case key.Matches(msg, keys.Write), key.Matches(msg, keys.Enter):
		m.input.SetMode(InputModeMessage, m.activeID)

	case key.Matches(msg, keys.LoadMore):
		if m.messages.HasMore(m.activeID) {
			return m, m.fetchPage(m.activeID)
		}

	case key.Matches(msg, keys.Rename):
		conv := m.activeConversation()
		m.input.SetMode(InputModeRename, m.activeID)
		m.input.SetValue(conv.DisplayTitle())

	case key.Matches(msg, keys.Delete):
		return m, m.deleteConversation(m.activeID)

	case key.Matches(msg, keys.APIKey):
		m.input.SetMode(InputModeAPIKey, "")

	case key.Matches(msg, keys.Bottom):
		m.vp.GotoBottom()

	default:
		var cmd tea.Cmd
		*m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.input.Reset()
		return m, nil

	case key.Matches(msg, keys.Cancel):
		m.coord.Cancel()
		return m, nil

	case key.Matches(msg, keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		mode, target := m.input.Mode(), m.input.TargetID()

		switch mode {
		case InputModeMessage:
			if value == "" {
				m.input.Reset()
				return m, nil
			}
			if m.streaming {
				m.err = core.ErrStreamBusy
				return m, nil
			}
			m.input.AddToHistory(value)
			m.input.Reset()
			return m, m.submit(target, value)

		case InputModeNewConversation:
			m.input.Reset()
			if value == "" {
				value = m.defaultPersona
			}
			return m, m.createConversation(value)

		case InputModeRename:
			m.input.Reset()
			if value == "" {
				return m, nil
			}
			return m, m.renameConversation(target, value)

		case InputModeAPIKey:
			m.input.Reset()
			return m, m.saveAPIKey(value)
		}

		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(event core.Event) tea.Cmd {
	switch event.Type {
	case core.EventConversationsLoaded, core.EventConversationCreated, core.EventConversationUpdated,
		core.EventConversationDeleted, core.EventConversationsSorted:
		m.refreshConversations()

	case core.EventActiveChanged:
		data, _ := event.Data.(core.ActiveData)
		m.refreshConversations()
		return m.activeChanged(event.ConversationID, data)

	case core.EventLoadingChanged:
		if data, ok := event.Data.(core.FlagData); ok {
			m.loading = data.Value
		}
		m.updateActivity()

	case core.EventStreamingChanged:
		if data, ok := event.Data.(core.FlagData); ok {
			m.streaming = data.Value
			m.streamingID = event.ConversationID
		}
		m.updateActivity()
		m.renderMessages()

	case core.EventMessagesChanged:
		if event.ConversationID != m.activeID {
			return nil
		}
		// Decide before the new rows are rendered
		m.scroller.Follow(event, m.activeID)
		m.renderMessages()
		m.queue.Flush()

	case core.EventError:
		if data, ok := event.Data.(core.ErrorData); ok {
			m.err = fmt.Errorf("%s: %w", data.Op, data.Err)
		}

	case core.EventSettingsLoaded:
		if data, ok := event.Data.(core.SettingsData); ok {
			m.apiKeyMissing = !data.APIKeyPresent
		}
	}
	return nil
}

func (m *Model) activeChanged(id string, data core.ActiveData) tea.Cmd {
	if data.PreviousID != "" && data.PreviousID != id {
		m.messages.Close(data.PreviousID)
	}
	m.activeID = id

	if id == "" {
		m.view = ViewConversations
		return nil
	}
	for i, c := range m.conversations {
		if c.ID == id {
			m.selectedIdx = i
		}
	}
	if !data.Navigate {
		return nil
	}

	m.view = ViewChat
	m.err = nil
	m.messages.Reset(id)
	m.vp.SetContent("")
	m.vp.GotoTop()
	return m.fetchPage(id)
}

func (m *Model) updateActivity() {
	switch {
	case m.streaming:
		m.net.SetActivity(NetActivityLLM)
	case m.loading:
		m.net.SetActivity(NetActivitySync)
	default:
		m.net.SetActivity(NetActivityIdle)
	}
}

func (m *Model) refreshConversations() {
	m.conversations = m.store.Conversations()
	if m.selectedIdx >= len(m.conversations) {
		m.selectedIdx = len(m.conversations) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
}

// renderMessages commits the active conversation's history to the viewport.
func (m *Model) renderMessages() {
	if m.activeID == "" || m.vp.Width <= 0 {
		return
	}
	conv := m.activeConversation()
	typing := m.streaming && m.streamingID == m.activeID
	m.vp.SetContent(renderMessages(m.messages.Messages(m.activeID), conv.StudentName, m.vp.Width, typing, m.now()))
}

func (m Model) selected() (model.ConversationWithStudent, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.conversations) {
		return model.ConversationWithStudent{}, false
	}
	return m.conversations[m.selectedIdx], true
}

func (m Model) activeConversation() model.ConversationWithStudent {
	for _, c := range m.conversations {
		if c.ID == m.activeID {
			return c
		}
	}
	return model.ConversationWithStudent{ID: m.activeID, StudentName: m.defaultPersona}
}

func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return EventMsg{Event: event}
	}
}

func (m Model) loadConversations() tea.Cmd {
	return func() tea.Msg {
		m.store.LoadConversations(m.ctx)
		return nil
	}
}

func (m Model) loadSettings() tea.Cmd {
	return func() tea.Msg {
		return settingsMsg{err: m.settings.Load(m.ctx)}
	}
}

func (m Model) saveAPIKey(value string) tea.Cmd {
	return func() tea.Msg {
		return settingsMsg{err: m.settings.SetAPIKey(m.ctx, value)}
	}
}

func (m Model) fetchPage(id string) tea.Cmd {
	pageSize := m.pageSize
	return func() tea.Msg {
		n, err := m.messages.FetchNextPage(m.ctx, id, pageSize)
		return pageFetchedMsg{conversationID: id, count: n, err: err}
	}
}

func (m Model) submit(id, content string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.coord.Submit(m.ctx, id, content)
		return submitDoneMsg{err: err}
	}
}

func (m Model) createConversation(persona string) tea.Cmd {
	return func() tea.Msg {
		m.store.CreateConversationWith(m.ctx, persona)
		return nil
	}
}

// deleteConversation cancels a reply pending in id before the delete is
// issued.
func (m Model) deleteConversation(id string) tea.Cmd {
	if m.coord.ConversationID() == id && m.coord.Cancel() {
		log.Debug().Str("conversation_id", id).Msg("cancelled reply of deleted conversation")
	}
	return func() tea.Msg {
		m.store.DeleteConversation(m.ctx, id)
		return nil
	}
}

func (m Model) renameConversation(id, title string) tea.Cmd {
	return func() tea.Msg {
		m.store.UpdateConversation(m.ctx, id, model.ConversationUpdate{Title: &title})
		return nil
	}
}

func (m Model) setActive(id string) tea.Cmd {
	return func() tea.Msg {
		m.store.SetActiveConversation(id)
		return nil
	}
}

func (m Model) closeConversation() tea.Cmd {
	return func() tea.Msg {
		m.store.CloseConversation()
		return nil
	}
}

// Key bindings
var keys = struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding
	Enter     key.Binding
	Tab       key.Binding
	ShiftTab  key.Binding
	Up        key.Binding
	Down      key.Binding
	New       key.Binding
	NewWith   key.Binding
	Delete    key.Binding
	Rename    key.Binding
	Write     key.Binding
	Cancel    key.Binding
	LoadMore  key.Binding
	APIKey    key.Binding
	Bottom    key.Binding
}{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	Help:      key.NewBinding(key.WithKeys("?")),
	Escape:    key.NewBinding(key.WithKeys("esc")),
	Enter:     key.NewBinding(key.WithKeys("enter")),
	Tab:       key.NewBinding(key.WithKeys("tab")),
	ShiftTab:  key.NewBinding(key.WithKeys("shift+tab")),
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	New:       key.NewBinding(key.WithKeys("n")),
	NewWith:   key.NewBinding(key.WithKeys("N")),
	Delete:    key.NewBinding(key.WithKeys("d")),
	Rename:    key.NewBinding(key.WithKeys("r")),
	Write:     key.NewBinding(key.WithKeys("i", "m")),
	Cancel:    key.NewBinding(key.WithKeys("ctrl+x")),
	LoadMore:  key.NewBinding(key.WithKeys("l")),
	APIKey:    key.NewBinding(key.WithKeys("K")),
	Bottom:    key.NewBinding(key.WithKeys("G", "end")),
}
