package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/rxscripts/internal/errors"
)

// ValidateContainerPath checks that path names an existing regular file.
// Missing or unusable paths are container load failures.
func ValidateContainerPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("container path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewContainerLoadFailed(path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.NewContainerLoadFailed(path, fmt.Errorf("not a regular file"))
	}
	return nil
}

// UpdatedPath derives the injection output path: <base><suffix><ext> next to
// the container, e.g. Data/Scripts.rxdata -> Data/Scripts_updated.rxdata.
func UpdatedPath(containerPath, suffix string) string {
	ext := filepath.Ext(containerPath)
	base := strings.TrimSuffix(containerPath, ext)
	return base + suffix + ext
}

// ValidateOutputPath rejects output paths that would overwrite the input
// container or write through a symlink.
func ValidateOutputPath(inputPath, outputPath string) error {
	if outputPath == "" {
		return errors.NewInvalidRequest("output path is required")
	}

	inAbs, err := filepath.Abs(inputPath)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	outAbs, err := filepath.Abs(outputPath)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	if inAbs == outAbs {
		return errors.NewInvalidRequest("output path must differ from the input container")
	}

	outInfo, err := os.Lstat(outAbs)
	if err != nil {
		return nil
	}
	if outInfo.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("output path must not be a symlink")
	}
	if inInfo, err := os.Stat(inAbs); err == nil && os.SameFile(inInfo, outInfo) {
		return errors.NewInvalidRequest("output path must differ from the input container")
	}
	return nil
}
