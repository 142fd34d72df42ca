package editor

import (
	"fmt"
	"strings"

	"github.com/hpungsan/kino/internal/errors"
)

// Event is one scripted input: either text or a key.
type Event struct {
	Text string
	Key  Key
}

var keyNames = map[string]Key{
	"tab":       KeyTab,
	"enter":     KeyEnter,
	"esc":       KeyEscape,
	"escape":    KeyEscape,
	"up":        KeyUp,
	"down":      KeyDown,
	"backspace": KeyBackspace,
	"space":     KeySpace,
}

// ParseKeys parses a key script such as "@Mar{Down}{Enter}". Named keys are written
// in braces; "{{" is a literal brace.
func ParseKeys(script string) ([]Event, error) {
	var events []Event
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			events = append(events, Event{Text: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(script); i++ {
		ch := script[i]
		if ch != '{' {
			text.WriteByte(ch)
			continue
		}
		if i+1 < len(script) && script[i+1] == '{' {
			text.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(script[i:], '}')
		if end < 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unterminated key at offset %d", i))
		}
		name := script[i+1 : i+end]
		k, ok := keyNames[strings.ToLower(name)]
		if !ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown key: %s", name))
		}
		flush()
		events = append(events, Event{Key: k})
		i += end
	}
	flush()
	return events, nil
}

// Run feeds events to c in order.
func Run(c *Controller, events []Event) {
	for _, ev := range events {
		if ev.Key != "" {
			c.KeyDown(ev.Key)
			continue
		}
		c.Type(ev.Text)
	}
}
