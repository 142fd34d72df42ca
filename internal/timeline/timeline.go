// Package timeline flattens a script into a single continuous time axis and derives the
// reference threads drawn across it.
package timeline

import (
	"math"

	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/script"
)

// DefaultMinTotal is the display floor for scripts shorter than a minute.
const DefaultMinTotal = 60.0

// Span is one node on the axis. Acts and scenes cover the union of their beats; a node
// without beats is empty at the point where it sits.
type Span struct {
	ID          string      `json:"id"`
	Kind        script.Kind `json:"kind"`
	Title       string      `json:"title,omitempty"`
	Start       float64     `json:"start"`
	End         float64     `json:"end"`
	Depth       int         `json:"depth"`
	ActIndex    int         `json:"act_index"`
	ResourceIDs []string    `json:"resource_ids,omitempty"`
}

// Mid is the midpoint of the span.
func (s Span) Mid() float64 { return (s.Start + s.End) / 2 }

// Duration is End - Start.
func (s Span) Duration() float64 { return s.End - s.Start }

// Point is one mention on a thread.
type Point struct {
	BeatID string  `json:"beat_id"`
	Time   float64 `json:"time"`
}

// Thread links the beats that mention one resource, in time order.
type Thread struct {
	ResourceID string  `json:"resource_id"`
	Label      string  `json:"label"`
	Color      string  `json:"color"`
	Points     []Point `json:"points"`
}

// Timeline is the data contract consumed by renderers.
type Timeline struct {
	Spans        []Span   `json:"spans"`
	Total        float64  `json:"total"`
	DisplayTotal float64  `json:"display_total"`
	Threads      []Thread `json:"threads"`
}

// ThreadColors is the palette threads cycle through.
var ThreadColors = []string{
	"#AF3029", "#BC5215", "#AD8301", "#66800B",
	"#24837B", "#205EA6", "#5E409D", "#A02F6F",
}

// ActColors tints act glyphs by act index.
var ActColors = []string{
	"#AF3029", "#BC5215", "#AD8301", "#66800B", "#205EA6", "#5E409D",
}

// ActColor returns the glyph colour for the i-th act.
func ActColor(i int) string {
	if i < 0 {
		return ActColors[0]
	}
	return ActColors[i%len(ActColors)]
}

// Build lays s out on one axis. Beats advance a cursor by their duration in document
// order; Total is the exact sum. minTotal only raises DisplayTotal.
func Build(s *script.Script, minTotal float64) Timeline {
	tl := Timeline{Spans: []Span{}, Threads: []Thread{}}

	// Parents are visited before their beats, so their end is patched afterwards.
	index := map[string]int{}
	var cursor float64
	act := -1
	s.Walk(func(n script.Node, depth int) bool {
		if n.Kind == script.Act {
			act++
		}
		sp := Span{
			ID:       n.ID,
			Kind:     n.Kind,
			Title:    n.Title,
			Start:    cursor,
			End:      cursor,
			Depth:    depth,
			ActIndex: act,
		}
		if n.Kind == script.Beat {
			sp.End = cursor + s.BeatDuration(n)
			sp.ResourceIDs = dedupe(append(markup.ReferencedIDs(n.Audio), markup.ReferencedIDs(n.Visual)...))
			cursor = sp.End
			for p := n.Parent; p != ""; {
				i, ok := index[p]
				if !ok {
					break
				}
				tl.Spans[i].End = cursor
				parent, _ := s.Node(p)
				p = parent.Parent
			}
		}
		index[n.ID] = len(tl.Spans)
		tl.Spans = append(tl.Spans, sp)
		return true
	})

	tl.Total = cursor
	tl.DisplayTotal = math.Max(cursor, minTotal)
	tl.Threads = threads(s, tl.Spans)
	return tl
}

func threads(s *script.Script, spans []Span) []Thread {
	var order []string
	points := map[string][]Point{}
	for _, sp := range spans {
		for _, id := range sp.ResourceIDs {
			if _, seen := points[id]; !seen {
				order = append(order, id)
			}
			points[id] = append(points[id], Point{BeatID: sp.ID, Time: sp.Mid()})
		}
	}

	out := []Thread{}
	for _, id := range order {
		r, ok := s.Resources.Get(id)
		if !ok || len(points[id]) < 2 {
			continue
		}
		out = append(out, Thread{
			ResourceID: id,
			Label:      r.DisplayLabel(),
			Color:      ThreadColors[len(out)%len(ThreadColors)],
			Points:     points[id],
		})
	}
	return out
}

// Angle maps a time on an axis of length total to radians, clockwise from the top.
func Angle(t, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return t / total * 2 * math.Pi
}

// At returns the span containing t, preferring the deepest one.
func (tl Timeline) At(t float64) (Span, bool) {
	var best Span
	found := false
	for _, sp := range tl.Spans {
		if t >= sp.Start && t < sp.End && (!found || sp.Depth > best.Depth) {
			best, found = sp, true
		}
	}
	return best, found
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
