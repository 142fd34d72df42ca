package script

import (
	"fmt"
	"time"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/resource"
)

// Version is an immutable snapshot of a script's content, resources and metadata.
type Version struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	Timestamp string      `json:"timestamp"`
	Stats     Stats       `json:"stats"`
	Data      VersionData `json:"data"`
}

// VersionData is the snapshotted part of a script.
type VersionData struct {
	Content   []DocNode           `json:"content"`
	Resources []resource.Resource `json:"resources"`
	Metadata  Metadata            `json:"metadata"`
}

// SaveVersion snapshots s and puts the snapshot first in History. An empty label
// becomes "Version N".
func (s *Script) SaveVersion(label string, now time.Time) Version {
	if label == "" {
		label = fmt.Sprintf("Version %d", len(s.History)+1)
	}
	resources := s.Resources.All()
	if resources == nil {
		resources = []resource.Resource{}
	}
	v := Version{
		ID:        NewID("v"),
		Label:     label,
		Timestamp: now.UTC().Format(time.RFC3339),
		Stats:     s.Stats(),
		Data: VersionData{
			Content:   s.content(),
			Resources: resources,
			Metadata:  s.Metadata,
		},
	}
	s.History = append([]Version{v}, s.History...)
	return v
}

// EnsureHistory saves an initial version when the history is empty.
func (s *Script) EnsureHistory(now time.Time) {
	if len(s.History) == 0 {
		s.SaveVersion("", now)
	}
}

// FindVersion looks up a version by id.
func (s *Script) FindVersion(id string) (Version, bool) {
	for _, v := range s.History {
		if v.ID == id {
			return v, true
		}
	}
	return Version{}, false
}

// RestoreVersion replaces the content and resources with the snapshot's, and overlays
// the snapshot's metadata on the current one. History is left as is.
func (s *Script) RestoreVersion(id string) error {
	v, ok := s.FindVersion(id)
	if !ok {
		return errors.NewNotFound("version", id)
	}
	if err := s.setContent(v.Data.Content); err != nil {
		return err
	}
	s.Resources = resource.NewRegistry(v.Data.Resources...)
	s.Metadata = s.Metadata.merge(v.Data.Metadata)
	return nil
}
