package tui

import (
	"strings"

	"github.com/xonecas/arona-chat/internal/scroll"
)

const (
	scrollbarThumb = "█"
	scrollbarTrack = "│"
)

// renderScrollbar draws one column, one cell per visible row, for vp.
func renderScrollbar(vp scroll.Viewport) string {
	height := vp.ClientHeight()
	if height <= 0 {
		return ""
	}
	total := vp.ScrollHeight()

	lines := make([]string, height)
	if total <= height {
		for i := range lines {
			lines[i] = trackStyle.Render(scrollbarTrack)
		}
		return strings.Join(lines, "\n")
	}

	// Thumb size is proportional to the visible share, minimum one row.
	thumbSize := (height * height) / total
	if thumbSize < 1 {
		thumbSize = 1
	}

	ratio := float64(vp.ScrollTop()) / float64(total-height)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	thumbPos := int(ratio * float64(height-thumbSize))

	for i := range lines {
		if i >= thumbPos && i < thumbPos+thumbSize {
			lines[i] = thumbStyle.Render(scrollbarThumb)
		} else {
			lines[i] = trackStyle.Render(scrollbarTrack)
		}
	}
	return strings.Join(lines, "\n")
}
