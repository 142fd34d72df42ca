package resolve

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resource"
)

func TestMatchMention(t *testing.T) {
	tests := []struct {
		before string
		want   Trigger
		ok     bool
	}{
		{"Hello @Jo", Trigger{Start: 6, Query: "Jo"}, true},
		{"@", Trigger{Start: 0, Query: ""}, true},
		{"mail a@b", Trigger{Start: 6, Query: "b"}, true},
		{"Hello @Jo ", Trigger{}, false},
		{"Hello @Jo-", Trigger{}, false},
		{"no trigger", Trigger{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.before, func(t *testing.T) {
			got, ok := MatchMention(tt.before)
			if ok != tt.ok || got != tt.want {
				t.Errorf("MatchMention(%q) = %+v, %v; want %+v, %v", tt.before, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatchSlash(t *testing.T) {
	got, ok := MatchSlash("/check")
	if !ok || got.Query != "check" || got.Start != 0 {
		t.Errorf("MatchSlash(/check) = %+v, %v", got, ok)
	}
	if _, ok := MatchSlash("and/or "); ok {
		t.Error("MatchSlash() matched across whitespace")
	}
}

func TestNextFilter(t *testing.T) {
	want := []Filter{"character", "location", "object", "media", "note", "web", All}
	f := All
	for i, w := range want {
		f = NextFilter(f)
		if f != w {
			t.Fatalf("step %d: NextFilter() = %q, want %q", i, f, w)
		}
	}
}

func TestCandidates(t *testing.T) {
	reg := resource.NewRegistry(
		resource.Resource{ID: "res-1", Type: resource.Character, Value: "john", Label: "John"},
		resource.Resource{ID: "res-2", Type: resource.Location, Value: "Johnson Docks"},
		resource.Resource{ID: "res-3", Type: resource.Object, Value: "knife", Label: "Knife"},
	)

	ids := func(rs []resource.Resource) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	if diff := cmp.Diff([]string{"res-1", "res-2"}, ids(Candidates(reg, "jo", All))); diff != "" {
		t.Errorf("Candidates(jo) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"res-2"}, ids(Candidates(reg, "jo", Filter(resource.Location)))); diff != "" {
		t.Errorf("Candidates(jo, location) mismatch (-want +got):\n%s", diff)
	}
	if got := Candidates(reg, "", All); len(got) != 3 {
		t.Errorf("Candidates(empty) = %d, want all 3", len(got))
	}
	if got := Candidates(reg, "zzz", All); len(got) != 0 {
		t.Errorf("Candidates(zzz) = %d, want 0", len(got))
	}
}

func TestAutolinker_LongestLabelWins(t *testing.T) {
	reg := resource.NewRegistry(
		resource.Resource{ID: "watch", Type: resource.Object, Value: "Watch"},
		resource.Resource{ID: "chrono", Type: resource.Object, Value: "chrono", Label: "Chrono Watch"},
	)
	a := NewAutolinker(reg)

	before := "She checks a Chrono Watch"
	got, ok := a.Suggest(before)
	if !ok {
		t.Fatal("Suggest() found nothing")
	}
	if got.Resource.ID != "chrono" {
		t.Errorf("Suggest() = %q, want chrono", got.Resource.ID)
	}
	if before[got.Start:got.End] != "Chrono Watch" {
		t.Errorf("span = %q", before[got.Start:got.End])
	}

	got, _ = a.Suggest("a plain watch")
	if got.Resource.ID != "watch" {
		t.Errorf("Suggest(plain watch) = %q, want watch", got.Resource.ID)
	}
	if _, ok := a.Suggest("a watch "); ok {
		t.Error("Suggest() must be anchored at the caret")
	}
}

func TestAutolinker_Stale(t *testing.T) {
	reg := resource.NewRegistry(resource.Resource{ID: "a", Type: resource.Note, Value: "Owl"})
	a := NewAutolinker(reg)
	if a.Stale(reg) {
		t.Fatal("fresh autolinker reported stale")
	}
	if err := reg.Add(resource.Resource{ID: "b", Type: resource.Note, Value: "Night Owl"}); err != nil {
		t.Fatal(err)
	}
	if !a.Stale(reg) {
		t.Error("autolinker not stale after registry change")
	}
}

func TestLinks(t *testing.T) {
	ann := resource.Resource{ID: "ann", Type: resource.Character, Value: "Ann"}
	box := resource.Resource{ID: "box", Type: resource.Object, Value: "Box"}
	ghost := resource.Resource{ID: "ghost", Type: resource.Note, Value: "Ghost"}
	ann.Description = "<p>Carries " + markup.ChipHTML(box) + " and " + markup.ChipHTML(ghost) + " and " + markup.ChipHTML(ann) + "</p>"
	reg := resource.NewRegistry(ann, box)

	want := []Link{{From: "ann", To: "box"}}
	if diff := cmp.Diff(want, Links(reg)); diff != "" {
		t.Errorf("Links() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ann"}, Backlinks(reg, "box")); diff != "" {
		t.Errorf("Backlinks() mismatch (-want +got):\n%s", diff)
	}
}
