//go:build windows

package ops

import "os"

// Windows has no O_NOFOLLOW. ValidatePath has already rejected symlinked paths,
// which leaves a race that is accepted here.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func isSymlinkRefusal(error) bool { return false }
