package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/hpungsan/rxscripts/internal/errors"
)

// ExpandInputs turns explicit paths and glob patterns (including "**") into
// the list of existing regular files with the given extension. An argument
// naming an existing file is taken literally even if it contains glob
// characters. Order follows
// the arguments; duplicates are dropped. No surviving file is an
// INVALID_REQUEST error.
func ExpandInputs(args []string, ext string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.NewInvalidRequest("at least one script file is required")
	}

	seen := make(map[string]bool)
	var files []string
	var rejected []string

	for _, arg := range args {
		candidates := []string{arg}
		if hasGlobMeta(arg) && !isRegularFile(arg) {
			matches, err := doublestar.Glob(arg)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("bad pattern %q: %v", arg, err))
			}
			candidates = matches
		}

		for _, path := range candidates {
			if !strings.EqualFold(filepath.Ext(path), ext) {
				rejected = append(rejected, path)
				continue
			}
			if !isRegularFile(path) {
				rejected = append(rejected, path)
				continue
			}
			key := filepath.Clean(path)
			if seen[key] {
				continue
			}
			seen[key] = true
			files = append(files, path)
		}
	}

	if len(files) == 0 {
		err := errors.NewInvalidRequest(fmt.Sprintf("no existing %s files among the given inputs", ext))
		err.Details = map[string]any{"rejected": rejected}
		return nil, err
	}
	return files, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
