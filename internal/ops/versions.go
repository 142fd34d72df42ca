package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// SaveVersionInput contains parameters for the SaveVersion operation.
type SaveVersionInput struct {
	ScriptID string
	Label    string // default: "Version N"
}

// VersionInfo is a version without its snapshot data.
type VersionInfo struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Timestamp string       `json:"timestamp"`
	Stats     script.Stats `json:"stats"`
}

func versionInfo(v script.Version) VersionInfo {
	return VersionInfo{ID: v.ID, Label: v.Label, Timestamp: v.Timestamp, Stats: v.Stats}
}

// SaveVersion snapshots the script and records when it was last saved.
func SaveVersion(ctx context.Context, database *sql.DB, cfg *config.Config, input SaveVersionInput) (*VersionInfo, error) {
	var saved script.Version
	_, err := mutate(ctx, database, cfg, input.ScriptID, "version_save", func(s *script.Script) error {
		t := now()
		saved = s.SaveVersion(strings.TrimSpace(input.Label), t)
		s.Metadata.LastSaved = stamp(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	info := versionInfo(saved)
	return &info, nil
}

// ListVersionsOutput contains the result of the ListVersions operation.
type ListVersionsOutput struct {
	ScriptID string        `json:"script_id"`
	Versions []VersionInfo `json:"versions"`
}

// ListVersions returns the history, newest first.
func ListVersions(ctx context.Context, database *sql.DB, scriptID string) (*ListVersionsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("version_list")
	}
	ok, err := db.Exists(database, scriptID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFound("script", scriptID)
	}
	history, err := db.ListVersions(database, scriptID)
	if err != nil {
		return nil, err
	}
	out := &ListVersionsOutput{ScriptID: scriptID, Versions: make([]VersionInfo, 0, len(history))}
	for _, v := range history {
		out.Versions = append(out.Versions, versionInfo(v))
	}
	return out, nil
}

// RestoreVersionInput contains parameters for the RestoreVersion operation.
type RestoreVersionInput struct {
	ScriptID  string
	VersionID string
}

// RestoreVersion replaces the content and resources with a snapshot's. The history is
// unchanged; save a version first to keep the current state.
func RestoreVersion(ctx context.Context, database *sql.DB, cfg *config.Config, input RestoreVersionInput) (*ScriptOutput, error) {
	s, err := mutate(ctx, database, cfg, input.ScriptID, "version_restore", func(s *script.Script) error {
		return s.RestoreVersion(input.VersionID)
	})
	if err != nil {
		return nil, err
	}
	return scriptOutput(s), nil
}
