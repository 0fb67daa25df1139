package app

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// citationChip is a label in the citation list that reports pointer hover
// and taps for one link ID.
type citationChip struct {
	widget.Label
	linkID  string
	onEnter func(linkID string)
	onLeave func(linkID string)
	onTap   func(linkID string)
}

var (
	_ desktop.Hoverable = (*citationChip)(nil)
	_ fyne.Tappable     = (*citationChip)(nil)
)

func newCitationChip(text, linkID string, onEnter, onLeave, onTap func(string)) *citationChip {
	c := &citationChip{linkID: linkID, onEnter: onEnter, onLeave: onLeave, onTap: onTap}
	c.Text = text
	c.Truncation = fyne.TextTruncateEllipsis
	c.ExtendBaseWidget(c)
	return c
}

func (c *citationChip) MouseIn(*desktop.MouseEvent) {
	c.Importance = widget.HighImportance
	c.Refresh()
	if c.onEnter != nil {
		c.onEnter(c.linkID)
	}
}

func (c *citationChip) MouseMoved(*desktop.MouseEvent) {}

func (c *citationChip) MouseOut() {
	c.Importance = widget.MediumImportance
	c.Refresh()
	if c.onLeave != nil {
		c.onLeave(c.linkID)
	}
}

func (c *citationChip) Tapped(*fyne.PointEvent) {
	if c.onTap != nil {
		c.onTap(c.linkID)
	}
}
