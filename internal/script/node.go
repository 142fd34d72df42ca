package script

import (
	"github.com/oklog/ulid/v2"
)

// Kind is the level of a node in the tree.
type Kind string

const (
	Act   Kind = "act"
	Scene Kind = "scene"
	Beat  Kind = "beat"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Act || k == Scene || k == Beat
}

// allowedChild is the only kind that may sit under a parent of the given kind.
// The empty kind stands for the root.
var allowedChild = map[Kind]Kind{
	"":    Act,
	Act:   Scene,
	Scene: Beat,
}

// ChildKind returns the kind that may be added under k ("" for the root).
func ChildKind(k Kind) (Kind, bool) {
	c, ok := allowedChild[k]
	return c, ok
}

// Field names a rich-text field of a node, the metadata or a resource.
type Field string

const (
	FieldDescription Field = "description"
	FieldAudio       Field = "audio"
	FieldVisual      Field = "visual"
)

// ParseField validates an external field name.
func ParseField(s string) (Field, bool) {
	switch Field(s) {
	case FieldDescription, FieldAudio, FieldVisual:
		return Field(s), true
	}
	return "", false
}

// DefaultBeatSeconds is the duration of a beat that has none set.
const DefaultBeatSeconds = 15.0

// Node is one Act, Scene or Beat. Acts and scenes carry a title, a description and
// children; beats carry audio and visual content and a duration.
type Node struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Audio       string   `json:"audio,omitempty"`
	Visual      string   `json:"visual,omitempty"`
	Collapsed   bool     `json:"collapsed,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`

	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Children = append([]string(nil), n.Children...)
	if n.Duration != nil {
		d := *n.Duration
		c.Duration = &d
	}
	return &c
}

// NewID mints a sortable unique id with a readable prefix. ulid.Make draws from one
// process-wide monotonic source, so ids minted within the same millisecond still
// increase.
func NewID(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}
