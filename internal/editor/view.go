package editor

import (
	"github.com/hpungsan/kino/internal/resolve"
	"github.com/hpungsan/kino/internal/resource"
)

// Rect is a host-supplied bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a menu anchor.
type Point struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Layout lets the host report geometry for menu placement.
type Layout interface {
	CaretRect() Rect
	SelectionRect() Rect
	ChipRect(index int) Rect
}

// MenuItem is one entry of an open menu.
type MenuItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// View is a snapshot of what the field shows around the text.
type View struct {
	State      string     `json:"state"`
	Query      string     `json:"query,omitempty"`
	Filter     string     `json:"filter,omitempty"`
	Items      []MenuItem `json:"items,omitempty"`
	Selected   int        `json:"selected"`
	MenuAt     *Point     `json:"menu_at,omitempty"`
	Suggestion *MenuItem  `json:"suggestion,omitempty"`
	Toolbar    bool       `json:"toolbar"`
	ToolbarAt  *Point     `json:"toolbar_at,omitempty"`
	Preview    *MenuItem  `json:"preview,omitempty"`
	PreviewAt  *Point     `json:"preview_at,omitempty"`
	Caret      int        `json:"caret"`
	Text       string     `json:"text"`
}

// View returns the current snapshot.
func (c *Controller) View() View {
	v := View{
		State:    c.state.String(),
		Toolbar:  c.toolbar,
		Caret:    c.buf.Caret(),
		Text:     c.buf.Text(),
		Selected: -1,
	}
	switch c.state {
	case MentionMenuOpen:
		v.Query = c.mention.trigger.Query
		v.Filter = string(c.mention.filter)
		for _, r := range c.mention.candidates {
			v.Items = append(v.Items, resourceItem(r))
		}
		v.Selected = c.mention.index
		v.MenuAt = pointPtr(c.menuPos)
	case SlashMenuOpen:
		v.Query = c.slash.trigger.Query
		for _, cmd := range c.slash.commands {
			v.Items = append(v.Items, MenuItem{ID: cmd.ID, Label: cmd.Label})
		}
		v.Selected = c.slash.index
		v.MenuAt = pointPtr(c.menuPos)
	case AutolinkSuggested:
		item := resourceItem(c.suggestion.Resource)
		v.Suggestion = &item
		v.MenuAt = pointPtr(c.menuPos)
	}
	if c.toolbar {
		v.ToolbarAt = pointPtr(c.toolbarPos)
	}
	if c.preview != nil {
		item := resourceItem(*c.preview)
		v.Preview = &item
		v.PreviewAt = pointPtr(c.previewPos)
	}
	return v
}

// MentionFilter returns the active type filter of the mention menu.
func (c *Controller) MentionFilter() resolve.Filter {
	return c.mention.filter
}

func resourceItem(r resource.Resource) MenuItem {
	return MenuItem{ID: r.ID, Label: r.DisplayLabel(), Type: string(r.Type)}
}

func pointPtr(p Point) *Point {
	return &p
}
