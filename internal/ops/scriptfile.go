package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/kino/internal/errors"
)

// maxImportBytes bounds how much of a file readScriptFile accepts.
const maxImportBytes = 32 << 20

// readScriptFile reads a validated import path without following a final symlink.
func readScriptFile(ctx context.Context, path string) ([]byte, error) {
	f, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, openError(path, "read", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read %s: %w", filepath.Base(path), err))
	}
	if len(data) > maxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", maxImportBytes))
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("import")
	}
	return data, nil
}

// writeScriptFile replaces path with data. The bytes go to a fresh temp file in
// the same directory, are synced, and are renamed over the target; an existing
// export survives any failure before the rename.
func writeScriptFile(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tmp := path + "." + hex.EncodeToString(suffix) + ".tmp"

	f, err := openNoFollow(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return openError(tmp, "write", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp)
		}
	}()

	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return errors.NewInternal(fmt.Errorf("failed to write export: %w", werr))
	}
	if ctx.Err() != nil {
		return errors.NewCancelled("export")
	}

	// Rename follows a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tmp, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	committed = true
	return nil
}

func openError(path, op string, err error) error {
	switch {
	case isSymlinkRefusal(err):
		return errors.NewInvalidRequest(fmt.Sprintf("cannot %s through a symlink", op))
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.NewFileNotFound(path)
	case stderrors.Is(err, fs.ErrPermission):
		return errors.NewInvalidRequest(fmt.Sprintf("permission denied: %s", filepath.Base(path)))
	}
	return errors.NewInternal(fmt.Errorf("failed to open %s: %w", filepath.Base(path), err))
}
