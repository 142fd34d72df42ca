package timeline

// Marker is a named point on a structure template, as a fraction of the whole.
type Marker struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// At places the marker on an axis of length total.
func (m Marker) At(total float64) float64 { return m.Percent * total }

// Template is a story structure overlay.
type Template struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Markers []Marker `json:"markers"`
}

// Templates lists the built-in structure overlays.
var Templates = []Template{
	{ID: "three-act", Name: "Three Act", Markers: []Marker{
		{"Inciting Incident", 0.12, "#AF3029"},
		{"Plot Pt 1", 0.25, "#BC5215"},
		{"Midpoint", 0.50, "#AD8301"},
		{"Plot Pt 2", 0.75, "#BC5215"},
		{"Climax", 0.90, "#AF3029"},
	}},
	{ID: "save-cat", Name: "Save the Cat", Markers: []Marker{
		{"Catalyst", 0.10, "#BC5215"},
		{"Break into 2", 0.20, "#AD8301"},
		{"Midpoint", 0.50, "#66800B"},
		{"All is Lost", 0.75, "#282726"},
		{"Break into 3", 0.85, "#AD8301"},
	}},
	{ID: "heros-journey", Name: "Hero's Journey", Markers: []Marker{
		{"Call to Adventure", 0.12, "#205EA6"},
		{"Threshold", 0.25, "#24837B"},
		{"Ordeal", 0.50, "#AF3029"},
		{"Road Back", 0.75, "#5E409D"},
		{"Resurrection", 0.90, "#A02F6F"},
	}},
	{ID: "harmon", Name: "Harmon Circle", Markers: []Marker{
		{"You", 0, "#205EA6"},
		{"Need", 0.125, "#24837B"},
		{"Go", 0.25, "#66800B"},
		{"Search", 0.375, "#AD8301"},
		{"Find", 0.5, "#BC5215"},
		{"Take", 0.625, "#AF3029"},
		{"Return", 0.75, "#A02F6F"},
		{"Change", 0.875, "#5E409D"},
	}},
}

// TemplateByID looks up a built-in template.
func TemplateByID(id string) (Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
