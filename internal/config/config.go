package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// TimelineMinSeconds is the display floor for an empty or very short script.
	// It never affects span offsets, only the DisplayTotal of a timeline.
	TimelineMinSeconds float64 `json:"timeline_min_seconds"`

	// DefaultBeatSeconds is the duration assumed for beats without an explicit duration.
	DefaultBeatSeconds float64 `json:"default_beat_seconds"`

	// MenuCloseGraceMS is how long transient editor menus survive a blur,
	// so that a click landing inside a menu can still complete.
	MenuCloseGraceMS int `json:"menu_close_grace_ms"`

	// AllowedPaths lists extra directories that import and export may use besides
	// the exports directory. Relative entries are ignored.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory rule for import/export. Extension and
	// symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns and DBMaxIdleConns cap the SQLite pool; 0 keeps database/sql's default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools names MCP tools to leave unregistered.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes drops every tool with the prefix, e.g. "version" removes
	// version_save, version_list and version_restore.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TimelineMinSeconds: 60,
		DefaultBeatSeconds: 15,
		MenuCloseGraceMS:   200,
	}
}

// Validate reports settings no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.TimelineMinSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeline_min_seconds must not be negative"))
	}
	if c.DefaultBeatSeconds < 0 {
		errs = append(errs, fmt.Errorf("default_beat_seconds must not be negative"))
	}
	if c.MenuCloseGraceMS < 0 {
		errs = append(errs, fmt.Errorf("menu_close_grace_ms must not be negative"))
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		errs = append(errs, fmt.Errorf("db pool limits must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads baseDir/config.json over the defaults. A missing file yields the defaults.
func Load(baseDir string) (*Config, error) {
	return layered(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo layers the global config (globalDir/config.json) and then the
// nearest .kino/config.json above startDir over the defaults. Later layers win
// for scalars; lists are unioned.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	return layered(filepath.Join(globalDir, "config.json"), FindRepoConfig(startDir))
}

func layered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, p := range paths {
		layer, err := readFile(p)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, layer)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig returns the nearest .kino/config.json at or above startDir, or "".
func FindRepoConfig(startDir string) string {
	for dir := startDir; ; {
		candidate := filepath.Join(dir, ".kino", "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// readFile decodes one config layer. A missing or empty path gives a zero
// Config, which Merge treats as "no opinion".
func readFile(path string) (*Config, error) {
	layer := &Config{}
	if path == "" {
		return layer, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return layer, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, layer); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layer, nil
}

// envBinding maps one KINO_* variable onto a Config overlay.
type envBinding struct {
	key   string
	apply func(overlay *Config, value string) error
}

var envBindings = []envBinding{
	{"KINO_TIMELINE_MIN_SECONDS", func(c *Config, v string) (err error) {
		c.TimelineMinSeconds, err = parseNonNegative(v, strconv.ParseFloat)
		return err
	}},
	{"KINO_DEFAULT_BEAT_SECONDS", func(c *Config, v string) (err error) {
		c.DefaultBeatSeconds, err = parseNonNegative(v, strconv.ParseFloat)
		return err
	}},
	{"KINO_MENU_CLOSE_GRACE_MS", func(c *Config, v string) (err error) {
		c.MenuCloseGraceMS, err = parseNonNegative(v, parseInt)
		return err
	}},
	{"KINO_DB_MAX_OPEN_CONNS", func(c *Config, v string) (err error) {
		c.DBMaxOpenConns, err = parseNonNegative(v, parseInt)
		return err
	}},
	{"KINO_ALLOW_UNSAFE_PATHS", func(c *Config, v string) (err error) {
		c.AllowUnsafePaths, err = strconv.ParseBool(v)
		return err
	}},
	{"KINO_ALLOWED_PATHS", func(c *Config, v string) error {
		c.AllowedPaths = filepath.SplitList(v)
		return nil
	}},
	{"KINO_DISABLED_TOOLS", func(c *Config, v string) error {
		c.DisabledTools = strings.Split(v, ",")
		return nil
	}},
	{"KINO_DISABLED_TYPES", func(c *Config, v string) error {
		c.DisabledTypes = strings.Split(v, ",")
		return nil
	}},
}

func parseInt(s string, _ int) (int, error) { return strconv.Atoi(s) }

func parseNonNegative[T int | float64](s string, parse func(string, int) (T, error)) (T, error) {
	n, err := parse(s, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

// LoadEnv reads KINO_* overrides from a dotenv file and the process environment
// and applies them on top of cfg. Process environment wins over the file.
// A missing file is not an error.
func LoadEnv(cfg *Config, envFile string) (*Config, error) {
	values := map[string]string{}
	if envFile != "" {
		fromFile, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
		for k, v := range fromFile {
			values[k] = v
		}
	}
	for _, b := range envBindings {
		if v, ok := os.LookupEnv(b.key); ok {
			values[b.key] = v
		}
	}
	return ApplyEnv(cfg, values)
}

// ApplyEnv overlays KINO_* values onto a copy of cfg. Empty values are skipped.
func ApplyEnv(cfg *Config, values map[string]string) (*Config, error) {
	overlay := &Config{}
	for _, b := range envBindings {
		v := strings.TrimSpace(values[b.key])
		if v == "" {
			continue
		}
		if err := b.apply(overlay, v); err != nil {
			return nil, fmt.Errorf("%s: invalid value %q: %w", b.key, v, err)
		}
	}
	return Merge(cfg, overlay), nil
}

// Merge lays overlay over base. Non-zero overlay scalars win, AllowUnsafePaths
// is sticky once any layer sets it, and lists are unioned in order.
func Merge(base, overlay *Config) *Config {
	return &Config{
		TimelineMinSeconds: orBase(overlay.TimelineMinSeconds, base.TimelineMinSeconds),
		DefaultBeatSeconds: orBase(overlay.DefaultBeatSeconds, base.DefaultBeatSeconds),
		MenuCloseGraceMS:   orBase(overlay.MenuCloseGraceMS, base.MenuCloseGraceMS),
		DBMaxOpenConns:     orBase(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:     orBase(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		AllowUnsafePaths:   base.AllowUnsafePaths || overlay.AllowUnsafePaths,
		AllowedPaths:       mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths),
		DisabledTools:      mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
		DisabledTypes:      mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes),
	}
}

func orBase[T comparable](v, base T) T {
	var zero T
	if v == zero {
		return base
	}
	return v
}

// mergeStringSlice unions a and b, trimming entries and dropping blanks and repeats.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
