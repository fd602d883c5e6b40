package ops

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/script"
)

// ExtractOneInput contains parameters for the ExtractOne operation.
type ExtractOneInput struct {
	ContainerPath string
	Name          string // exact display name
	OutputDir     string // optional, default: saved_dir
}

// ExtractOneOutput contains the result of the ExtractOne operation.
type ExtractOneOutput struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	SafeName string `json:"safe_name"`
	Index    int    `json:"index"`
	Bytes    int    `json:"bytes"`
}

// ExtractOne writes the first decodable record whose display name equals
// input.Name to <dir>/<safe name><ext>.
func ExtractOne(ctx context.Context, d Deps, input ExtractOneInput) (*ExtractOneOutput, error) {
	if input.Name == "" {
		return nil, errors.NewInvalidRequest("script name is required")
	}
	cfg := d.cfg()

	c, err := d.load(input.ContainerPath)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("save")
	}

	var skipped []SkippedRecord
	s, ok := c.FindByDisplayName(input.Name, d.skipCollector(&skipped))
	if !ok {
		return nil, errors.NewNotFound(input.Name)
	}
	if script.IsBlankIdentifier(s.Record.SafeName) {
		return nil, errors.NewInvalidRequest("script name has no filesystem-safe characters: " + input.Name)
	}

	dir := input.OutputDir
	if dir == "" {
		dir = cfg.SavedDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewIOFailed(dir, err)
	}

	path := filepath.Join(dir, s.Record.SafeName+cfg.ScriptExt)
	if err := os.WriteFile(path, []byte(s.Source), 0644); err != nil {
		return nil, errors.NewIOFailed(path, err)
	}

	d.journal(db.Run{
		Op:            db.OpExtractOne,
		ContainerPath: input.ContainerPath,
		OutputPath:    path,
		Written:       1,
		Skipped:       len(skipped),
	})

	return &ExtractOneOutput{
		Path:     path,
		Name:     s.Record.Name.Text,
		SafeName: s.Record.SafeName,
		Index:    s.Record.Index,
		Bytes:    len(s.Source),
	}, nil
}
