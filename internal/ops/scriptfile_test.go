package ops

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/kino/internal/errors"
)

func TestWriteScriptFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "owl.kinoscript")

	require.NoError(t, writeScriptFile(context.Background(), path, []byte("first")))
	require.NoError(t, writeScriptFile(context.Background(), path, []byte("second")))

	got, err := readScriptFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteScriptFileCancelledKeepsOld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owl.kinoscript")
	require.NoError(t, os.WriteFile(path, []byte("kept"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := writeScriptFile(ctx, path, []byte("lost"))
	require.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "kept", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadScriptFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := readScriptFile(context.Background(), filepath.Join(dir, "missing.kinoscript"))
	require.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)

	big := filepath.Join(dir, "big.kinoscript")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(maxImportBytes+1))
	require.NoError(t, f.Close())
	_, err = readScriptFile(context.Background(), big)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestScriptFileRefusesFinalSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no O_NOFOLLOW on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real.kinoscript")
	require.NoError(t, os.WriteFile(target, []byte("real"), 0600))
	link := filepath.Join(dir, "link.kinoscript")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	_, err := readScriptFile(context.Background(), link)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	err = writeScriptFile(context.Background(), link, []byte("over"))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "real", string(got))
}
