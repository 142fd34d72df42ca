package script

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resource"
)

// Draft is a loosely typed script from an external generator. Types are free-form
// strings, ids and colours may be missing, and chips may be bare
// `<span data-id="...">Label</span>` references.
type Draft struct {
	ID        string          `json:"id" yaml:"id"`
	Title     string          `json:"title" yaml:"title"`
	Metadata  Metadata        `json:"metadata" yaml:"metadata"`
	Resources []DraftResource `json:"resources" yaml:"resources"`
	Content   []DraftNode     `json:"content" yaml:"content"`
}

// DraftResource is a resource as a generator writes it.
type DraftResource struct {
	ID          string   `json:"id" yaml:"id"`
	Type        string   `json:"type" yaml:"type"`
	Value       string   `json:"value" yaml:"value"`
	Label       string   `json:"label" yaml:"label"`
	Icon        string   `json:"icon" yaml:"icon"`
	Color       string   `json:"color" yaml:"color"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// DraftNode is a node as a generator writes it. Beat text may come nested under
// content or flat as audio and visual.
type DraftNode struct {
	ID          string       `json:"id" yaml:"id"`
	Type        string       `json:"type" yaml:"type"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Content     *BeatContent `json:"content" yaml:"content"`
	Audio       string       `json:"audio" yaml:"audio"`
	Visual      string       `json:"visual" yaml:"visual"`
	Duration    *float64     `json:"duration" yaml:"duration"`
	Children    []DraftNode  `json:"children" yaml:"children"`
}

// DecodeDraft parses a draft. format is "json" or "yaml"; JSON input may be wrapped
// in prose or a code fence, and only the outermost object is read.
func DecodeDraft(data []byte, format string) (Draft, error) {
	var d Draft
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return Draft{}, errors.NewInvalidRequest("invalid YAML draft: " + err.Error())
		}
	case "json", "":
		body := data
		if i, j := bytes.IndexByte(data, '{'), bytes.LastIndexByte(data, '}'); i >= 0 && j > i {
			body = data[i : j+1]
		}
		if err := json.Unmarshal(body, &d); err != nil {
			return Draft{}, errors.NewInvalidRequest("invalid JSON draft: " + err.Error())
		}
	default:
		return Draft{}, errors.NewInvalidRequest("unknown draft format: " + format)
	}
	if d.Content == nil {
		return Draft{}, errors.NewInvalidRequest("draft has no content")
	}
	return d, nil
}

// FromDraft turns a draft into a script. Resource types are normalised onto the
// closed set and get default colours and icons; bare chip spans in node text become
// full chips; missing ids are minted. Node kinds that are missing or unknown are
// inferred from depth.
func FromDraft(d Draft, now time.Time) (*Script, error) {
	meta := d.Metadata
	if meta.Title == "" {
		meta.Title = d.Title
	}
	stamp := now.UTC().Format(time.RFC3339)
	if meta.Created == "" {
		meta.Created = stamp
	}
	meta.Modified = stamp

	reg := resource.NewRegistry()
	for _, dr := range d.Resources {
		r := resource.Resource{
			ID:          dr.ID,
			Type:        resource.NormalizeType(dr.Type),
			Value:       dr.Value,
			Label:       dr.Label,
			Icon:        dr.Icon,
			Color:       dr.Color,
			Description: dr.Description,
			Tags:        dr.Tags,
		}
		if r.ID == "" {
			r.ID = NewID("res")
		}
		if r.Value == "" {
			r.Value = r.Label
		}
		if _, dup := reg.Get(r.ID); dup {
			continue
		}
		if err := reg.Add(r.WithDefaults()); err != nil {
			return nil, err
		}
	}

	hydrate := func(m string) string {
		return markup.HydrateChips(m, reg.Get)
	}
	var convert func(dn DraftNode, depth int) DocNode
	convert = func(dn DraftNode, depth int) DocNode {
		kind := Kind(strings.ToLower(strings.TrimSpace(dn.Type)))
		if !kind.Valid() {
			kind = kindAtDepth(depth)
		}
		out := DocNode{ID: dn.ID, Type: kind}
		if kind == Beat {
			c := BeatContent{Audio: dn.Audio, Visual: dn.Visual}
			if dn.Content != nil {
				c = *dn.Content
			}
			c.Audio, c.Visual = hydrate(c.Audio), hydrate(c.Visual)
			out.Content = &c
			out.Duration = dn.Duration
			return out
		}
		out.Title = dn.Title
		out.Description = hydrate(dn.Description)
		for _, c := range dn.Children {
			out.Children = append(out.Children, convert(c, depth+1))
		}
		return out
	}
	content := make([]DocNode, 0, len(d.Content))
	for _, dn := range d.Content {
		content = append(content, convert(dn, 0))
	}

	s := New(d.ID, meta)
	s.Resources = reg
	if err := s.setContent(content); err != nil {
		return nil, err
	}
	return s, nil
}

func kindAtDepth(depth int) Kind {
	switch depth {
	case 0:
		return Act
	case 1:
		return Scene
	}
	return Beat
}
