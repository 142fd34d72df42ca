package ops

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// ExportInput contains parameters for the ExportScript operation.
type ExportInput struct {
	ScriptID string
	Path     string // optional, default: <exports>/<title>-<timestamp>.kinoscript
}

// ExportOutput contains the result of the ExportScript operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportScript writes the full document, history included, to a .kinoscript file.
func ExportScript(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	s, err := load(ctx, database, cfg, input.ScriptID, "export")
	if err != nil {
		return nil, err
	}
	t := now()

	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(s.Metadata.Title, t)
		if err != nil {
			return nil, err
		}
	}
	// Default paths are checked too: the title is user input.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	data, err := script.Encode(s)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := writeScriptFile(ctx, exportPath, data); err != nil {
		return nil, err
	}
	return &ExportOutput{Path: exportPath, Bytes: len(data), ExportedAt: t.Unix()}, nil
}

// defaultExportPath is <exports>/<sanitized title>-<timestamp>.kinoscript.
func defaultExportPath(title string, t time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.kinoscript", SanitizeForFilename(title), t.Format("2006-01-02T150405"))
	return filepath.Join(dir, name), nil
}
