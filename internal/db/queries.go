package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = errors.NewConflict("unique constraint violation")

// Summary is the list view of a stored script. The counts are denormalised at save
// time so listing never decodes documents.
type Summary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Author    string  `json:"author,omitempty"`
	Nodes     int     `json:"nodes"`
	Words     int     `json:"words"`
	Duration  float64 `json:"duration"`
	Versions  int     `json:"versions"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
	DeletedAt *int64  `json:"deleted_at,omitempty"`
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Insert stores a new script with its history.
func Insert(db *sql.DB, s *script.Script) error {
	docJSON, err := encodeDoc(s)
	if err != nil {
		return err
	}
	stats := s.Stats()
	now := time.Now().Unix()

	return withTx(db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO scripts (
				id, title, author, doc_json, nodes, words, duration,
				created_at, updated_at, deleted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		`
		_, err := tx.Exec(query,
			s.ID, s.Metadata.Title, toNullString(s.Metadata.Author), docJSON,
			s.Len(), stats.Words, stats.Duration, now, now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewInternal(err)
		}
		return insertVersions(tx, s.ID, s.History)
	})
}

// Update replaces the stored document of an existing script. Versions already stored
// are immutable; only new ones are added.
func Update(db *sql.DB, s *script.Script) error {
	docJSON, err := encodeDoc(s)
	if err != nil {
		return err
	}
	stats := s.Stats()
	now := time.Now().Unix()

	return withTx(db, func(tx *sql.Tx) error {
		query := `
			UPDATE scripts
			SET title = ?, author = ?, doc_json = ?, nodes = ?, words = ?,
				duration = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`
		result, err := tx.Exec(query,
			s.Metadata.Title, toNullString(s.Metadata.Author), docJSON,
			s.Len(), stats.Words, stats.Duration, now, s.ID,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.NewInternal(err)
		}
		if rowsAffected == 0 {
			return errors.NewNotFound("script", s.ID)
		}
		return insertVersions(tx, s.ID, s.History)
	})
}

// Load reads a script and its history, newest version first.
func Load(db *sql.DB, id string) (*script.Script, error) {
	var docJSON string
	err := db.QueryRow(`SELECT doc_json FROM scripts WHERE id = ? AND deleted_at IS NULL`, id).Scan(&docJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("script", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var doc script.Document
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, errors.NewInternal(err)
	}
	history, err := ListVersions(db, id)
	if err != nil {
		return nil, err
	}
	doc.History = history
	s, err := script.FromDocument(doc)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// Exists reports whether an active script with id is stored.
func Exists(db *sql.DB, id string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM scripts WHERE id = ? AND deleted_at IS NULL LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// List returns script summaries, most recently updated first, and the total count.
func List(db *sql.DB, limit, offset int, includeDeleted bool) ([]Summary, int, error) {
	where := " WHERE deleted_at IS NULL"
	if includeDeleted {
		where = ""
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM scripts` + where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT s.id, s.title, s.author, s.nodes, s.words, s.duration,
			(SELECT COUNT(*) FROM versions v WHERE v.script_id = s.id),
			s.created_at, s.updated_at, s.deleted_at
		FROM scripts s` + strings.ReplaceAll(where, "deleted_at", "s.deleted_at") + `
		ORDER BY s.updated_at DESC, s.id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			author    sql.NullString
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &author, &sum.Nodes, &sum.Words, &sum.Duration,
			&sum.Versions, &sum.CreatedAt, &sum.UpdatedAt, &deletedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		sum.Author = author.String
		if deletedAt.Valid {
			sum.DeletedAt = &deletedAt.Int64
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// SoftDelete marks a script as deleted by setting deleted_at.
func SoftDelete(db *sql.DB, id string) error {
	result, err := db.Exec(`UPDATE scripts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("script", id)
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted scripts and their versions. With
// olderThanDays set, only scripts deleted before that cutoff go.
func PurgeDeleted(db *sql.DB, olderThanDays *int) (int, error) {
	query := `DELETE FROM scripts WHERE deleted_at IS NOT NULL`
	var args []any
	if olderThanDays != nil {
		query += " AND deleted_at < ?"
		args = append(args, time.Now().AddDate(0, 0, -*olderThanDays).Unix())
	}
	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// ListVersions returns the stored history of a script, newest first.
func ListVersions(db *sql.DB, scriptID string) ([]script.Version, error) {
	return listVersions(db, scriptID)
}

func listVersions(q querier, scriptID string) ([]script.Version, error) {
	rows, err := q.Query(`
		SELECT id, label, created, stats_json, data_json
		FROM versions WHERE script_id = ?
		ORDER BY seq DESC
	`, scriptID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []script.Version
	for rows.Next() {
		var (
			v                   script.Version
			statsJSON, dataJSON string
		)
		if err := rows.Scan(&v.ID, &v.Label, &v.Timestamp, &statsJSON, &dataJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &v.Stats); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &v.Data); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// insertVersions stores the versions of history not yet on disk. History is newest
// first, so the oldest entry gets seq 0.
func insertVersions(tx *sql.Tx, scriptID string, history []script.Version) error {
	for i, v := range history {
		seq := len(history) - 1 - i
		statsJSON, err := json.Marshal(v.Stats)
		if err != nil {
			return errors.NewInternal(err)
		}
		dataJSON, err := json.Marshal(v.Data)
		if err != nil {
			return errors.NewInternal(err)
		}
		_, err = tx.Exec(`
			INSERT INTO versions (id, script_id, seq, label, created, stats_json, data_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, v.ID, scriptID, seq, v.Label, v.Timestamp, string(statsJSON), string(dataJSON))
		if err != nil {
			if isUniqueConstraintError(err) {
				return errors.NewConflict("version history diverged for script " + scriptID)
			}
			return errors.NewInternal(err)
		}
	}
	return nil
}

// encodeDoc serialises s without its history, which lives in the versions table.
func encodeDoc(s *script.Script) (string, error) {
	doc := s.Document()
	doc.History = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
