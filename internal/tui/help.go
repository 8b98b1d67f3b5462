package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpItem struct {
	key  string
	desc string
}

var helpItems = []helpItem{
	{"q / Ctrl+C", "Quit"},
	{"n", "New conversation"},
	{"N", "New conversation with a student"},
	{"d", "Delete selected conversation"},
	{"r", "Rename conversation"},
	{"Enter", "Open conversation / send message"},
	{"i / m", "Write a message"},
	{"Ctrl+X", "Stop the reply being generated"},
	{"l", "Load more history"},
	{"K", "Set API key"},
	{"↑ / ↓", "Select / Scroll / Browse history"},
	{"PgUp / PgDn", "Scroll page"},
	{"G / End", "Go to bottom"},
	{"Esc", "Back / Cancel"},
	{"?", "Toggle help"},
}

// RenderHelp renders the help overlay.
func RenderHelp(width, height int) string {
	lines := []string{titleStyle.Render("⌨ Keyboard Shortcuts"), ""}

	maxKeyLen := 0
	for _, item := range helpItems {
		if l := lipgloss.Width(item.key); l > maxKeyLen {
			maxKeyLen = l
		}
	}
	for _, item := range helpItems {
		k := helpKeyStyle.Render(padRight(item.key, maxKeyLen))
		lines = append(lines, k+"  "+helpDescStyle.Render(item.desc))
	}

	box := helpStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func padRight(s string, length int) string {
	if w := lipgloss.Width(s); w < length {
		return s + strings.Repeat(" ", length-w)
	}
	return s
}
