package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// NetActivity is what the backend is currently busy with.
type NetActivity int

const (
	NetActivityIdle NetActivity = iota
	NetActivitySync             // Loading conversations or history
	NetActivityLLM              // Waiting for a reply
)

const netIndicatorInterval = 80 * time.Millisecond

// NetIndicator is a bouncing progress bar shown in the status line.
type NetIndicator struct {
	activity  NetActivity
	position  int
	direction int
	width     int
}

// NetIndicatorTickMsg animates the indicator.
type NetIndicatorTickMsg time.Time

// NewNetIndicator creates an idle indicator.
func NewNetIndicator() NetIndicator {
	return NetIndicator{direction: 1, width: 10}
}

// SetActivity sets the current activity.
func (n *NetIndicator) SetActivity(activity NetActivity) {
	n.activity = activity
}

// Activity returns the current activity.
func (n NetIndicator) Activity() NetActivity {
	return n.activity
}

// Update advances the animation on ticks.
func (n NetIndicator) Update(msg tea.Msg) (NetIndicator, tea.Cmd) {
	if _, ok := msg.(NetIndicatorTickMsg); !ok {
		return n, nil
	}
	if n.activity != NetActivityIdle {
		n.position += n.direction
		if n.position >= n.width-1 {
			n.position = n.width - 1
			n.direction = -1
		} else if n.position <= 0 {
			n.position = 0
			n.direction = 1
		}
	}
	return n, n.tick()
}

func (n NetIndicator) tick() tea.Cmd {
	return tea.Tick(netIndicatorInterval, func(t time.Time) tea.Msg {
		return NetIndicatorTickMsg(t)
	})
}

// Init starts the animation.
func (n NetIndicator) Init() tea.Cmd {
	return n.tick()
}

// View renders the indicator.
func (n NetIndicator) View() string {
	const (
		barEmpty  = "░"
		barFilled = "█"
	)

	var style lipgloss.Style
	var label string
	switch n.activity {
	case NetActivityIdle:
		return dimmedStyle.Render("◇ IDLE " + "▐" + strings.Repeat(barEmpty, n.width) + "▌")
	case NetActivitySync:
		style = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)
		label = "◆ SYNC"
	case NetActivityLLM:
		style = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
		label = "◆ REPLY"
	}

	var bar strings.Builder
	bar.WriteString("▐")
	for i := 0; i < n.width; i++ {
		if i >= n.position-1 && i <= n.position+1 {
			bar.WriteString(barFilled)
		} else {
			bar.WriteString(barEmpty)
		}
	}
	bar.WriteString("▌")
	return style.Render(label + " " + bar.String())
}
