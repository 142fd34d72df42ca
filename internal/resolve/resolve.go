// Package resolve detects resource references in the text before the caret:
// @-mention completion and autolink suggestions.
package resolve

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resource"
)

var (
	mentionPattern = regexp.MustCompile(`@(\w*)$`)
	slashPattern   = regexp.MustCompile(`/(\w*)$`)
)

// Trigger is an active trigger span at the end of the text before the caret.
// Start is the byte offset of the trigger character.
type Trigger struct {
	Start int
	Query string
}

// MatchMention detects "@query" ending at the caret.
func MatchMention(before string) (Trigger, bool) {
	return match(mentionPattern, before)
}

// MatchSlash detects "/query" ending at the caret.
func MatchSlash(before string) (Trigger, bool) {
	return match(slashPattern, before)
}

func match(re *regexp.Regexp, before string) (Trigger, bool) {
	m := re.FindStringSubmatchIndex(before)
	if m == nil {
		return Trigger{}, false
	}
	return Trigger{Start: m[0], Query: before[m[2]:m[3]]}, true
}

// Filter restricts mention candidates to one resource type. All is the empty filter.
type Filter string

const All Filter = "all"

var filterCycle = []Filter{All, Filter(resource.Character), Filter(resource.Location),
	Filter(resource.Object), Filter(resource.Media), Filter(resource.Note), Filter(resource.Web)}

// NextFilter returns the filter after f in the cycle.
func NextFilter(f Filter) Filter {
	for i, c := range filterCycle {
		if c == f {
			return filterCycle[(i+1)%len(filterCycle)]
		}
	}
	return All
}

// Candidates returns the resources whose label or value contains query,
// case-insensitively, restricted by filter. Registry order is kept.
func Candidates(reg *resource.Registry, query string, filter Filter) []resource.Resource {
	q := strings.ToLower(query)
	var out []resource.Resource
	for _, r := range reg.All() {
		if filter != All && filter != "" && Filter(r.Type) != filter {
			continue
		}
		if strings.Contains(strings.ToLower(r.DisplayLabel()), q) || strings.Contains(strings.ToLower(r.Value), q) {
			out = append(out, r)
		}
	}
	return out
}

// Suggestion is an autolink match ending at the caret.
type Suggestion struct {
	Resource resource.Resource
	Start    int // byte offset in the text before the caret
	End      int
}

type pattern struct {
	res resource.Resource
	re  *regexp.Regexp
}

// Autolinker matches resource labels typed as plain text. Longer labels are tried
// first so that "Chrono Watch" wins over "Watch".
type Autolinker struct {
	version  uint64
	patterns []pattern
}

// NewAutolinker compiles the labels of every resource in reg.
func NewAutolinker(reg *resource.Registry) *Autolinker {
	rs := reg.All()
	sort.SliceStable(rs, func(i, j int) bool {
		return utf8.RuneCountInString(rs[i].DisplayLabel()) > utf8.RuneCountInString(rs[j].DisplayLabel())
	})
	a := &Autolinker{version: reg.Version()}
	for _, r := range rs {
		label := r.DisplayLabel()
		if strings.TrimSpace(label) == "" {
			continue
		}
		a.patterns = append(a.patterns, pattern{
			res: r,
			re:  regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `$`),
		})
	}
	return a
}

// Stale reports whether reg changed since the autolinker was built.
func (a *Autolinker) Stale(reg *resource.Registry) bool {
	return a == nil || a.version != reg.Version()
}

// Suggest returns the first label, longest first, that the text before the caret ends with.
func (a *Autolinker) Suggest(before string) (Suggestion, bool) {
	if a == nil || before == "" {
		return Suggestion{}, false
	}
	for _, p := range a.patterns {
		if loc := p.re.FindStringIndex(before); loc != nil {
			return Suggestion{Resource: p.res, Start: loc[0], End: loc[1]}, true
		}
	}
	return Suggestion{}, false
}

// Link is a reference from one resource's description to another resource.
type Link struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Links builds the cross-reference graph among resources from the chips in their
// descriptions. Self references and references to unknown ids are skipped.
func Links(reg *resource.Registry) []Link {
	var out []Link
	for _, r := range reg.All() {
		for _, id := range markup.ReferencedIDs(r.Description) {
			if id == r.ID {
				continue
			}
			if _, ok := reg.Get(id); !ok {
				continue
			}
			out = append(out, Link{From: r.ID, To: id})
		}
	}
	return out
}

// Backlinks returns the ids of resources whose descriptions reference id.
func Backlinks(reg *resource.Registry, id string) []string {
	var out []string
	for _, l := range Links(reg) {
		if l.To == id {
			out = append(out, l.From)
		}
	}
	return out
}
