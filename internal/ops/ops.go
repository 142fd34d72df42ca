package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// now is swapped in tests that need stable timestamps.
var now = time.Now

// stamp formats t the way script metadata stores times.
func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// load reads a script for a single operation and applies the configured beat default.
func load(ctx context.Context, database *sql.DB, cfg *config.Config, id, op string) (*script.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled(op)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("script_id is required")
	}
	s, err := db.Load(database, id)
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.DefaultBeatSeconds > 0 {
		s.BeatSeconds = cfg.DefaultBeatSeconds
	}
	return s, nil
}

// mutate loads a script, applies fn and writes the whole document back. Concurrent
// writers race at document granularity; the last save wins.
func mutate(ctx context.Context, database *sql.DB, cfg *config.Config, id, op string, fn func(s *script.Script) error) (*script.Script, error) {
	s, err := load(ctx, database, cfg, id, op)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled(op)
	}
	s.Metadata.Modified = stamp(now())
	if err := db.Update(database, s); err != nil {
		return nil, err
	}
	return s, nil
}

func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
