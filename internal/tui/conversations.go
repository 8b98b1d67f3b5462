package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/xonecas/arona-chat/internal/model"
)

const (
	listTitleWidth   = 24
	listStudentWidth = 12
)

// renderBanner renders the full-width application header.
func renderBanner(width int) string {
	if width < 20 {
		width = 20
	}
	text := " ✦ A R O N A   C H A T ✦"
	pad := (width - lipgloss.Width(text)) / 2
	if pad < 0 {
		pad = 0
	}
	line := strings.Repeat(" ", pad) + text
	if w := lipgloss.Width(line); w < width {
		line += strings.Repeat(" ", width-w)
	}
	return headerStyle.Width(width).Render(line)
}

// RenderConversationList renders the conversation list view.
func RenderConversationList(convs []model.ConversationWithStudent, selectedIdx int, activeID string, width, height int, now time.Time) string {
	var sections []string
	sections = append(sections, renderBanner(width))
	sections = append(sections, renderSectionTitle("CONVERSATIONS", width))

	// banner + title + list border (2)
	listHeight := height - 4
	if listHeight < 3 {
		listHeight = 3
	}
	contentWidth := width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	if len(convs) == 0 {
		empty := dimmedStyle.Render("No conversations yet. Press 'n' to start one.")
		sections = append(sections, listStyle.Width(width-2).Height(listHeight).Render(empty))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	// Keep the selection visible
	start := 0
	if selectedIdx >= listHeight {
		start = selectedIdx - listHeight + 1
	}
	end := start + listHeight
	if end > len(convs) {
		end = len(convs)
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := convs[i]
		lines = append(lines, renderConversationLine(c, i == selectedIdx, c.ID == activeID, contentWidth, now))
	}
	sections = append(sections, listStyle.Width(width-2).Height(listHeight).Render(strings.Join(lines, "\n")))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderConversationLine(c model.ConversationWithStudent, selected, active bool, width int, now time.Time) string {
	marker := " "
	if active {
		marker = activeMarkerStyle.Render("●")
	}

	title := truncateWithEllipsis(c.DisplayTitle(), listTitleWidth)
	student := truncateWithEllipsis(c.StudentName, listStudentWidth)
	stamp := formatTimestamp(c.UpdatedAt, now)

	first := fmt.Sprintf("%s %s %s %s",
		marker,
		padRight(title, listTitleWidth),
		assistantStyle.Render(padRight(student, listStudentWidth)),
		dimmedStyle.Render(padRight(stamp, 6)),
	)

	// marker + title + student + stamp + separators
	msgWidth := width - (2 + listTitleWidth + 1 + listStudentWidth + 1 + 6) - 5
	var preview string
	if c.LastMessage != "" && msgWidth > 3 {
		preview = dimmedStyle.Render(" │ " + truncateWithEllipsis(singleLine(c.LastMessage), msgWidth))
	}

	if selected {
		return listItemSelectedStyle.Width(width).Render(first + preview)
	}
	return listItemStyle.Width(width).Render(first + preview)
}
