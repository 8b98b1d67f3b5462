package scroll

import "github.com/charmbracelet/bubbles/viewport"

// BubblesViewport adapts a bubbles viewport. Terminals cannot animate, so
// smooth scrolls jump like instant ones.
type BubblesViewport struct {
	Model *viewport.Model
}

func (v BubblesViewport) ScrollHeight() int {
	return v.Model.TotalLineCount()
}

func (v BubblesViewport) ScrollTop() int {
	return v.Model.YOffset
}

func (v BubblesViewport) ClientHeight() int {
	return v.Model.Height
}

func (v BubblesViewport) ScrollTo(top int, smooth bool) {
	v.Model.SetYOffset(top)
}
