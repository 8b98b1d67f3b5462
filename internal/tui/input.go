package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputMode represents the current input mode.
type InputMode int

const (
	InputModeNone InputMode = iota
	InputModeMessage
	InputModeNewConversation
	InputModeRename
	InputModeAPIKey
)

const maxHistorySize = 100

// InputModel handles the single-line prompt.
type InputModel struct {
	textInput    textinput.Model
	mode         InputMode
	targetID     string   // Conversation the input applies to
	history      []string // Previously sent messages
	historyIndex int      // Current position in history (-1 = not browsing)
	draft        string   // Saved draft when browsing history
}

// NewInputModel creates a new input model.
func NewInputModel() InputModel {
	ti := textinput.New()
	ti.CharLimit = 4000
	ti.Width = 60

	return InputModel{
		textInput:    ti,
		history:      make([]string, 0, maxHistorySize),
		historyIndex: -1,
	}
}

// SetMode switches the prompt to mode for the conversation targetID.
func (m *InputModel) SetMode(mode InputMode, targetID string) {
	m.mode = mode
	m.targetID = targetID
	m.textInput.Reset()
	m.textInput.EchoMode = textinput.EchoNormal

	switch mode {
	case InputModeMessage:
		m.textInput.Placeholder = "Message your student..."
		m.textInput.Prompt = inputPromptStyle.Render("✎ ") + " "
	case InputModeNewConversation:
		m.textInput.Placeholder = "Student name (empty for the default)..."
		m.textInput.Prompt = inputPromptStyle.Render("✚ ") + " "
	case InputModeRename:
		m.textInput.Placeholder = "New title..."
		m.textInput.Prompt = inputPromptStyle.Render("✐ ") + " "
	case InputModeAPIKey:
		m.textInput.Placeholder = "API key..."
		m.textInput.Prompt = inputPromptStyle.Render("⚿ ") + " "
		m.textInput.EchoMode = textinput.EchoPassword
	default:
		m.textInput.Placeholder = ""
		m.textInput.Prompt = ""
	}

	if mode != InputModeNone {
		m.textInput.Focus()
	} else {
		m.textInput.Blur()
	}
}

// Mode returns the current input mode.
func (m InputModel) Mode() InputMode {
	return m.mode
}

// TargetID returns the conversation the input applies to.
func (m InputModel) TargetID() string {
	return m.targetID
}

// Value returns the current input value.
func (m InputModel) Value() string {
	return m.textInput.Value()
}

// SetValue replaces the current input value.
func (m *InputModel) SetValue(v string) {
	m.textInput.SetValue(v)
	m.textInput.CursorEnd()
}

// IsActive returns true if input is active.
func (m InputModel) IsActive() bool {
	return m.mode != InputModeNone
}

// History key bindings
var historyKeys = struct {
	Up   key.Binding
	Down key.Binding
}{
	Up:   key.NewBinding(key.WithKeys("up")),
	Down: key.NewBinding(key.WithKeys("down")),
}

// Update handles input updates.
func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.mode == InputModeMessage {
		switch {
		case key.Matches(keyMsg, historyKeys.Up):
			m.navigateHistory(1)
			return m, nil
		case key.Matches(keyMsg, historyKeys.Down):
			m.navigateHistory(-1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// navigateHistory moves through the history.
// direction: 1 = older (up), -1 = newer (down)
func (m *InputModel) navigateHistory(direction int) {
	if len(m.history) == 0 {
		return
	}

	if m.historyIndex == -1 && direction == 1 {
		m.draft = m.textInput.Value()
	}

	newIndex := m.historyIndex + direction
	if newIndex < -1 {
		newIndex = -1
	}
	if newIndex >= len(m.history) {
		newIndex = len(m.history) - 1
	}
	m.historyIndex = newIndex

	if m.historyIndex == -1 {
		m.SetValue(m.draft)
		return
	}
	// Most recent is at the end of the slice
	m.SetValue(m.history[len(m.history)-1-m.historyIndex])
}

// View renders the input bar, with a hint when inactive.
func (m InputModel) View(width int, hint string) string {
	if m.mode != InputModeNone {
		return inputStyle.Width(width - 2).Render(m.textInput.View())
	}
	return inputStyle.Width(width - 2).Render(dimmedStyle.Render(hint))
}

// Reset clears the input.
func (m *InputModel) Reset() {
	m.textInput.Reset()
	m.mode = InputModeNone
	m.targetID = ""
	m.historyIndex = -1
	m.draft = ""
	m.textInput.Blur()
}

// AddToHistory records a sent message.
func (m *InputModel) AddToHistory(message string) {
	if message == "" {
		return
	}
	if len(m.history) > 0 && m.history[len(m.history)-1] == message {
		return
	}

	m.history = append(m.history, message)
	if len(m.history) > maxHistorySize {
		m.history = m.history[len(m.history)-maxHistorySize:]
	}
}

// SetWidth sets the input width.
func (m *InputModel) SetWidth(width int) {
	m.textInput.Width = width - 4 // Account for padding/border
}
