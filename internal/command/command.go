// Package command maps slash commands and markdown shortcuts to block transforms.
package command

import (
	"strings"

	"github.com/hpungsan/kino/internal/markup"
)

// Command is one entry of the slash menu.
type Command struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Block       markup.Block `json:"block"`
}

var commands = []Command{
	{ID: "todo", Label: "Checklist", Description: "Track tasks with a checklist", Block: markup.Checklist},
	{ID: "p", Label: "Text", Description: "Plain text paragraph", Block: markup.Paragraph},
	{ID: "h1", Label: "Heading 1", Description: "Big section heading", Block: markup.Heading1},
	{ID: "h2", Label: "Heading 2", Description: "Medium section heading", Block: markup.Heading2},
	{ID: "h3", Label: "Heading 3", Description: "Small section heading", Block: markup.Heading3},
	{ID: "ul", Label: "Bullet List", Description: "Simple bulleted list", Block: markup.BulletList},
	{ID: "ol", Label: "Numbered List", Description: "List with numbering", Block: markup.NumberedList},
	{ID: "quote", Label: "Quote", Description: "Capture a quote", Block: markup.Quote},
	{ID: "code", Label: "Code", Description: "Code block", Block: markup.Code},
	{ID: "hr", Label: "Divider", Description: "Visual divider", Block: markup.Divider},
}

// Commands returns the slash menu in display order.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

// Filter returns the commands whose label contains query, case-insensitively.
func Filter(query string) []Command {
	q := strings.ToLower(query)
	var out []Command
	for _, c := range commands {
		if strings.Contains(strings.ToLower(c.Label), q) {
			out = append(out, c)
		}
	}
	return out
}

// ByID finds a command by id.
func ByID(id string) (Command, bool) {
	for _, c := range commands {
		if c.ID == id {
			return c, true
		}
	}
	return Command{}, false
}

var shortcuts = map[string]markup.Block{
	"#":   markup.Heading1,
	"##":  markup.Heading2,
	"###": markup.Heading3,
	">":   markup.Quote,
	"-":   markup.BulletList,
	"*":   markup.BulletList,
	"1.":  markup.NumberedList,
	"[]":  markup.Checklist,
}

// Shortcut maps the text of a block before the caret, at the moment space is
// pressed, to a block transform. The whole prefix must equal a shorthand token.
func Shortcut(prefix string) (markup.Block, bool) {
	b, ok := shortcuts[prefix]
	return b, ok
}
