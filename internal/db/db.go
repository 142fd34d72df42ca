package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	_ "modernc.org/sqlite"
)

// DBFile is the database file name under the base directory.
const DBFile = "kino.db"

// Every pooled connection gets these, so they live in the DSN rather than in an Exec.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// migration upgrades the schema from version-1 to version. Statements run in one
// transaction together with the user_version bump.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{1, "scripts and version history", []string{
		`CREATE TABLE IF NOT EXISTS scripts (
		  id          TEXT PRIMARY KEY,
		  title       TEXT NOT NULL,
		  author      TEXT,
		  doc_json    TEXT NOT NULL,
		  nodes       INTEGER NOT NULL,
		  words       INTEGER NOT NULL,
		  duration    REAL NOT NULL,
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL,
		  deleted_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scripts_updated
		 ON scripts(updated_at DESC) WHERE deleted_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS versions (
		  id          TEXT PRIMARY KEY,
		  script_id   TEXT NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
		  seq         INTEGER NOT NULL,
		  label       TEXT NOT NULL,
		  created     TEXT NOT NULL,
		  stats_json  TEXT NOT NULL,
		  data_json   TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_script_seq
		 ON versions(script_id, seq)`,
	}},
	{2, "purge index", []string{
		`CREATE INDEX IF NOT EXISTS idx_scripts_deleted
		 ON scripts(deleted_at) WHERE deleted_at IS NOT NULL`,
	}},
}

// CurrentSchemaVersion is the version a database has after Init.
var CurrentSchemaVersion = migrations[len(migrations)-1].version

// Init opens (creating if needed) the SQLite database at baseDir/kino.db, makes
// sure baseDir/exports exists, and migrates the schema. Tests pass t.TempDir().
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "exports")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0700)
	}

	dbPath := filepath.Join(baseDir, DBFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma="+strings.Join(pragmas, "&_pragma="))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := checkJournalMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ConfigurePool applies the pool limits set in cfg; zero values keep the driver defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs every migration above the stored user_version. A database written
// by a newer kino is refused rather than opened with a schema it does not know.
func migrate(db *sql.DB) error {
	current, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than this kino supports (%d)", current, CurrentSchemaVersion)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// checkJournalMode confirms the journal_mode pragma in the DSN took effect.
func checkJournalMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL journal mode, got %s", mode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in the user_version pragma.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion overwrites the user_version pragma.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
