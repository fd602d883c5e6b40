package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/rxscripts/internal/errors"
)

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, so an interrupted write never leaves a partial file at path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+hex.EncodeToString(randBytes)+".tmp")

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return errors.NewIOFailed(path, err)
	}

	// Clean up temp file on failure (existing file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewIOFailed(path, err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewIOFailed(path, err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewIOFailed(path, err)
	}
	file = nil

	// os.Rename would replace a symlink itself, but refuse to be surprising.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("%s is a symlink", path))
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest(fmt.Sprintf("%s already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)", path))
			}
		}
		return errors.NewIOFailed(path, err)
	}

	success = true
	return nil
}
