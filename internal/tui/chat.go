package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/xonecas/arona-chat/internal/model"
	"github.com/xonecas/arona-chat/internal/scroll"
)

// chatViewportID identifies the message list for the scroll controller.
const chatViewportID = "chat-messages"

// wrapText wraps text to fit within maxWidth display columns, preserving words.
// Long words that exceed maxWidth are hard-wrapped.
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			wordWidth := lipgloss.Width(word)

			if wordWidth > maxWidth {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				for word != "" {
					chunk := truncateToWidth(word, maxWidth)
					if chunk == "" {
						// a single rune wider than the column
						chunk = string([]rune(word)[:1])
					}
					lines = append(lines, chunk)
					word = word[len(chunk):]
				}
				continue
			}

			switch {
			case current == "":
				current = word
			case lipgloss.Width(current)+1+wordWidth <= maxWidth:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// speaker returns the label shown above a message.
func speaker(msg model.Message, studentName string) string {
	switch msg.Role {
	case model.RoleUser:
		return "Sensei"
	case model.RoleAssistant:
		if msg.Name != "" {
			return msg.Name
		}
		return studentName
	default:
		return "System"
	}
}

// renderMessages renders the history as viewport content.
func renderMessages(msgs []model.Message, studentName string, width int, typing bool, now time.Time) string {
	if len(msgs) == 0 && !typing {
		return dimmedStyle.Render("No messages yet. Press 'i' to say hello.")
	}

	var lines []string
	for i, msg := range msgs {
		if i > 0 {
			lines = append(lines, "")
		}
		label := RoleStyle(msg.Role).Render(speaker(msg, studentName))
		lines = append(lines, label+" "+dimmedStyle.Render(formatTimestamp(msg.CreatedAt, now)))
		for _, line := range wrapText(msg.Content, width-2) {
			lines = append(lines, "  "+line)
		}
	}
	if typing {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, assistantStyle.Render(studentName)+dimmedStyle.Render(" is typing..."))
	}
	return strings.Join(lines, "\n")
}

// RenderChatView renders an open conversation around its message viewport.
func RenderChatView(conv model.ConversationWithStudent, vp *viewport.Model, width int, hasMore bool) string {
	var sections []string
	sections = append(sections, renderBanner(width))

	adapter := scroll.BubblesViewport{Model: vp}
	suffix := ""
	if hasMore {
		suffix = dimmedStyle.Render("  ↑ more")
	} else if total := adapter.ScrollHeight(); total > vp.Height {
		suffix = fmt.Sprintf("  %d/%d", vp.YOffset+vp.Height, total)
	}
	title := fmt.Sprintf("%s · %s", conv.DisplayTitle(), conv.StudentName)
	sections = append(sections, renderSectionTitleWithSuffix(title, suffix, width))

	bar := strings.Split(renderScrollbar(adapter), "\n")
	content := strings.Split(vp.View(), "\n")
	rows := make([]string, vp.Height)
	for i := range rows {
		var line, side string
		if i < len(content) {
			line = content[i]
		}
		if i < len(bar) {
			side = " " + bar[i]
		}
		rows[i] = line + side
	}
	sections = append(sections, chatStyle.Width(width-2).Padding(0, 1).Render(strings.Join(rows, "\n")))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
