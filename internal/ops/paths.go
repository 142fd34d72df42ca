package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
)

// PathCheckMode says whether a script file is about to be read or written.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // script_import
	PathCheckWrite                      // script_export
)

// Import takes generator drafts as well as documents; export only writes documents.
var scriptExtensions = map[PathCheckMode][]string{
	PathCheckRead:  {".kinoscript", ".json", ".yaml", ".yml"},
	PathCheckWrite: {".kinoscript", ".json"},
}

// maxFilenameStem caps the title-derived part of a default export name.
const maxFilenameStem = 80

// ValidatePath vets a script file path before import or export.
//
// The path must be free of ".." and carry an extension the mode accepts, and the
// file itself must not be a symlink. Unless cfg.AllowUnsafePaths is set, the file
// must also sit directly in the exports directory or in one of cfg.AllowedPaths,
// with no subdirectory in between: only the final component is opened with
// O_NOFOLLOW, so every other component has to be a directory the user configured.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	abs, err := scriptPath(path, mode)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := requireAllowedDir(abs, cfg); err != nil {
			return err
		}
	}

	info, err := os.Lstat(abs)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest("path must not be a symlink")
	case err == nil && info.IsDir():
		return errors.NewInvalidRequest("path is a directory")
	case os.IsNotExist(err) && mode == PathCheckRead:
		return errors.NewFileNotFound(path)
	}
	return nil
}

// scriptPath applies the checks that need no filesystem access and returns the
// absolute path.
func scriptPath(path string, mode PathCheckMode) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if hasDotDot(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	exts := scriptExtensions[mode]
	if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("path must end in one of %s", strings.Join(exts, ", ")))
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	return abs, nil
}

func requireAllowedDir(abs string, cfg *config.Config) error {
	dirs, err := allowedDirs(cfg)
	if err != nil {
		return err
	}
	parent := filepath.Dir(abs)
	if !slices.Contains(dirs, parent) {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"file must be directly in the exports directory or an allowed_paths entry (no subdirectories); allowed: %s",
			strings.Join(dirs, ", ")))
	}
	if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// allowedDirs is the exports directory followed by every absolute allowed_paths
// entry. Relative entries are ignored. An entry that is itself a symlink is
// replaced by its target so that the parent comparison sees real directories.
func allowedDirs(cfg *config.Config) ([]string, error) {
	exports, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{exports}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	dirs := make([]string, 0, len(candidates))
	for _, d := range candidates {
		d = filepath.Clean(d)
		if info, err := os.Lstat(d); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path %s: %v", d, err))
			}
			d = resolved
		}
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs, nil
}

// hasDotDot checks every component, splitting on both separators so that a
// Windows path written with forward slashes is caught too.
func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// BaseDir is where kino keeps its database and exports: $KINO_HOME, or ~/.kino.
func BaseDir() (string, error) {
	if dir := os.Getenv("KINO_HOME"); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, ".kino"), nil
}

// DefaultExportsDir returns BaseDir()/exports.
func DefaultExportsDir() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "exports"), nil
}

// SanitizeForFilename turns a script title into a file name stem: lower case,
// words joined by single dashes, separators and control characters dropped.
// "INT. DINER / Night" becomes "int.-diner-night".
func SanitizeForFilename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r), r == '/', r == '\\', r == '-':
			dash = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if dash {
			b.WriteByte('-')
			dash = false
		}
		b.WriteRune(r)
	}

	stem := b.String()
	for strings.Contains(stem, "..") {
		stem = strings.ReplaceAll(stem, "..", ".")
	}
	stem = strings.Trim(stem, ".-")
	if runes := []rune(stem); len(runes) > maxFilenameStem {
		stem = strings.TrimRight(string(runes[:maxFilenameStem]), ".-")
	}
	if stem == "" {
		return "untitled"
	}
	return stem
}
