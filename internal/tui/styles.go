package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/xonecas/arona-chat/internal/model"
)

// Colors - Arona palette: sky blue, halo white, soft pink accents
var (
	colorBrand    = lipgloss.Color("#3DB4F2") // Sky blue
	colorAccent   = lipgloss.Color("#FF8FB8") // Halo pink
	colorBrandDim = lipgloss.Color("#1F6F9E") // Dimmed blue for borders

	colorUser      = lipgloss.Color("#7CE38B") // Sensei (user) green
	colorAssistant = lipgloss.Color("#FF8FB8") // Student (assistant) pink
	colorSystem    = lipgloss.Color("#7FD6FF") // System cyan

	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF4F6D")
	colorMuted   = lipgloss.Color("#6A7A99")

	colorBg      = lipgloss.Color("#0B1220")
	colorBgAlt   = lipgloss.Color("#111A2E")
	colorBgPanel = lipgloss.Color("#15203A")
	colorBorder  = lipgloss.Color("#2A3A5E")
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand).
			Background(colorBgAlt)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	// Conversation list
	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBrandDim)

	listItemStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Padding(0, 1)

	listItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorBg).
				Background(colorBrand).
				Bold(true).
				Padding(0, 1)

	activeMarkerStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	// Messages
	chatStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBrandDim)

	userStyle = lipgloss.NewStyle().
			Foreground(colorUser).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(colorAssistant).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(colorSystem).
			Italic(true)

	// Input
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBrand).
			Padding(0, 1)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	// Help
	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorBrand).
			Background(colorBgPanel).
			Padding(1, 2).
			Margin(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBgAlt)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	dimmedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	trackStyle = lipgloss.NewStyle().Foreground(colorBorder)
	thumbStyle = lipgloss.NewStyle().Foreground(colorBrandDim)
)

// RoleStyle returns the label style for a message role.
func RoleStyle(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return userStyle
	case model.RoleAssistant:
		return assistantStyle
	default:
		return systemStyle
	}
}

// renderSectionTitle renders a section title that spans the full width.
func renderSectionTitle(title string, width int) string {
	return renderSectionTitleWithSuffix(title, "", width)
}

// renderSectionTitleWithSuffix renders a section title with an optional suffix (like scroll indicator).
func renderSectionTitleWithSuffix(title, suffix string, width int) string {
	// Format: ✦── TITLE ──✦ [suffix]
	titleWithSpaces := " " + title + " "
	availableWidth := width - lipgloss.Width(titleWithSpaces) - 4 - lipgloss.Width(suffix)
	if availableWidth < 2 {
		availableWidth = 2
	}
	leftDashes := availableWidth / 2
	rightDashes := availableWidth - leftDashes

	line := "✦─" + strings.Repeat("─", leftDashes) + titleWithSpaces + strings.Repeat("─", rightDashes) + "─✦"
	if suffix != "" {
		line += suffix
	}
	return panelTitleStyle.Width(width).Render(line)
}

// truncateToWidth truncates s to fit within maxWidth display columns.
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "")
}

func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return truncateToWidth(s, maxWidth)
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// singleLine collapses whitespace so previews fit one row.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatTimestamp shows the time for today and the date otherwise.
func formatTimestamp(ts, now time.Time) string {
	ts = ts.Local()
	now = now.Local()
	if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
		return ts.Format("15:04")
	}
	return ts.Format("Jan 02")
}
