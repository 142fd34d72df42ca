// Package resource holds the story wiki: characters, locations, objects and other
// entities that rich-text fields reference through chips.
package resource

import (
	"strings"
)

// Type is the closed set of resource kinds.
type Type string

const (
	Character Type = "character"
	Location  Type = "location"
	Object    Type = "object"
	Media     Type = "media"
	Web       Type = "web"
	Note      Type = "note"
)

// Types lists every resource type in filter-cycle order.
var Types = []Type{Character, Location, Object, Media, Note, Web}

// Valid reports whether t is one of the closed set.
func (t Type) Valid() bool {
	switch t {
	case Character, Location, Object, Media, Web, Note:
		return true
	}
	return false
}

var synonyms = map[string]Type{
	"prop":    Object,
	"item":    Object,
	"place":   Location,
	"setting": Location,
	"person":  Character,
	"role":    Character,
	"link":    Web,
	"url":     Web,
}

// NormalizeType maps an arbitrary external type string onto the closed set.
// Empty input means object; anything unrecognised becomes a note.
// Only decoders of external input call this.
func NormalizeType(raw string) Type {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Object
	}
	if t := Type(s); t.Valid() {
		return t
	}
	if t, ok := synonyms[s]; ok {
		return t
	}
	return Note
}

// FallbackColor is used for chips whose resource can no longer be found.
const FallbackColor = "#878580"

var defaultColors = map[Type]string{
	Character: "#A02F6F",
	Location:  "#BC5215",
	Object:    "#205EA6",
	Media:     "#5E409D",
	Web:       "#24837B",
	Note:      "#6F6E69",
}

// DefaultColor returns the presentation colour for t.
func DefaultColor(t Type) string {
	if c, ok := defaultColors[t]; ok {
		return c
	}
	return FallbackColor
}

const svgOpen = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round">`

var defaultIcons = map[Type]string{
	Character: svgOpen + `<path d="M19 21v-2a4 4 0 0 0-4-4H9a4 4 0 0 0-4 4v2"/><circle cx="12" cy="7" r="4"/></svg>`,
	Location:  svgOpen + `<polygon points="1 6 1 22 8 18 16 22 23 18 23 2 16 6 8 2 1 6"/><line x1="8" x2="8" y1="2" y2="18"/><line x1="16" x2="16" y1="6" y2="22"/></svg>`,
	Object:    svgOpen + `<path d="M21 16V8a2 2 0 0 0-1-1.73l-7-4a2 2 0 0 0-2 0l-7 4A2 2 0 0 0 3 8v8a2 2 0 0 0 1 1.73l7 4a2 2 0 0 0 2 0l7-4A2 2 0 0 0 21 16z"/><polyline points="3.27 6.96 12 12.01 20.73 6.96"/><line x1="12" y1="22.08" x2="12" y2="12"/></svg>`,
	Media:     svgOpen + `<rect width="18" height="18" x="3" y="3" rx="2" ry="2"/><circle cx="9" cy="9" r="2"/><path d="m21 15-3.086-3.086a2 2 0 0 0-2.828 0L6 21"/></svg>`,
	Web:       svgOpen + `<circle cx="12" cy="12" r="10"/><line x1="2" x2="22" y1="12" y2="12"/><path d="M12 2a15.3 15.3 0 0 1 4 10 15.3 15.3 0 0 1-4 10 15.3 15.3 0 0 1 4-10z"/></svg>`,
	Note:      svgOpen + `<path d="M4 19.5v-15A2.5 2.5 0 0 1 6.5 2H20v20H6.5a2.5 2.5 0 0 1 0-5H20"/></svg>`,
}

// FallbackIcon is the small circle glyph used when a chip has no icon.
const FallbackIcon = `<svg xmlns="http://www.w3.org/2000/svg" width="12" height="12" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><circle cx="12" cy="12" r="10"/></svg>`

// DefaultIcon returns the SVG glyph for t.
func DefaultIcon(t Type) string {
	if icon, ok := defaultIcons[t]; ok {
		return icon
	}
	return FallbackIcon
}

// Resource is a referenceable story entity.
type Resource struct {
	ID           string   `json:"id"`
	Type         Type     `json:"type"`
	Value        string   `json:"value"`
	Label        string   `json:"label,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	Color        string   `json:"color,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	EmbeddedData string   `json:"embeddedData,omitempty"`
	MimeType     string   `json:"mimeType,omitempty"`
}

// DisplayLabel is the label, falling back to the value.
func (r Resource) DisplayLabel() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Value
}

// WithDefaults returns a copy with an empty colour and icon filled in from the type.
func (r Resource) WithDefaults() Resource {
	if r.Color == "" {
		r.Color = DefaultColor(r.Type)
	}
	if r.Icon == "" {
		r.Icon = DefaultIcon(r.Type)
	}
	return r
}

// Clone returns a deep copy.
func (r Resource) Clone() Resource {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}

// HasTag reports whether the resource carries tag (case-insensitive).
func (r Resource) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
