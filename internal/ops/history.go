package ops

import (
	"path/filepath"

	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	ContainerPath string // optional filter
	Limit         int    // default: 20, max: 500
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Runs []db.Run `json:"runs"`
}

// History lists journaled runs, newest first.
func History(d Deps, input HistoryInput) (*HistoryOutput, error) {
	if d.DB == nil {
		return nil, errors.NewInvalidRequest("run journal is not available")
	}

	filter := db.RunFilter{Limit: input.Limit}
	if input.ContainerPath != "" {
		abs, err := filepath.Abs(input.ContainerPath)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		filter.ContainerPath = abs
	}

	runs, err := db.ListRuns(d.DB, filter)
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{Runs: runs}, nil
}
