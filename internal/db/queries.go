package db

import (
	"database/sql"

	"github.com/hpungsan/rxscripts/internal/errors"
)

// Operation names recorded in the journal.
const (
	OpExtractAll = "extract"
	OpExtractOne = "save"
	OpInject     = "inject"
)

// DefaultListLimit and MaxListLimit bound ListRuns.
const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

// Run is one journaled operation.
type Run struct {
	ID            string `json:"id"`
	Op            string `json:"op"`
	ContainerPath string `json:"container_path"`
	OutputPath    string `json:"output_path,omitempty"`
	Written       int    `json:"written"`
	Updated       int    `json:"updated"`
	Unchanged     int    `json:"unchanged"`
	NotFound      int    `json:"not_found"`
	Errors        int    `json:"errors"`
	Skipped       int    `json:"skipped"`
	CreatedAt     int64  `json:"created_at"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	ContainerPath string
	Limit         int
}

// InsertRun appends a run to the journal.
func InsertRun(db *sql.DB, r *Run) error {
	query := `
		INSERT INTO runs (
			id, op, container_path, output_path,
			written, updated, unchanged, not_found, errors, skipped, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var output sql.NullString
	if r.OutputPath != "" {
		output = sql.NullString{String: r.OutputPath, Valid: true}
	}

	_, err := db.Exec(query,
		r.ID, r.Op, r.ContainerPath, output,
		r.Written, r.Updated, r.Unchanged, r.NotFound, r.Errors, r.Skipped, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListRuns returns runs newest first, optionally for one container path.
func ListRuns(db *sql.DB, f RunFilter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, op, container_path, output_path,
			written, updated, unchanged, not_found, errors, skipped, created_at
		FROM runs
	`
	args := []any{}
	if f.ContainerPath != "" {
		query += " WHERE container_path = ?"
		args = append(args, f.ContainerPath)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var output sql.NullString
		if err := rows.Scan(
			&r.ID, &r.Op, &r.ContainerPath, &output,
			&r.Written, &r.Updated, &r.Unchanged, &r.NotFound, &r.Errors, &r.Skipped, &r.CreatedAt,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		r.OutputPath = output.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}
