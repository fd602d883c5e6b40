package ops

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/script"
)

// Per-file injection statuses.
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusNotFound  = "not_found"
	StatusError     = "error"
)

// InjectInput contains parameters for the Inject operation.
type InjectInput struct {
	ContainerPath string
	Files         []string // paths or glob patterns
	OutputPath    string   // optional, default: <base><updated_suffix><ext>
}

// InjectFileResult is the outcome for one input file.
type InjectFileResult struct {
	File     string `json:"file"`
	SafeName string `json:"safe_name"`
	Status   string `json:"status"`
	Script   string `json:"script,omitempty"` // matched display name
	Index    int    `json:"index"`
	Error    string `json:"error,omitempty"`
}

// InjectTally counts results by status.
type InjectTally struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	NotFound  int `json:"not_found"`
	Errors    int `json:"errors"`
}

// InjectOutput contains the result of the Inject operation. OutputPath is
// empty when no record changed, in which case nothing was written.
type InjectOutput struct {
	OutputPath string             `json:"output_path,omitempty"`
	Results    []InjectFileResult `json:"results"`
	Tally      InjectTally        `json:"tally"`
	Collisions []script.Collision `json:"collisions,omitempty"`
}

// Inject replaces the payload of every record whose safe identifier equals
// an input file's base name, then writes the whole container to a new file.
// Files are independent: a missing match or read error marks that file and
// processing continues. The input container is never modified.
func Inject(ctx context.Context, d Deps, input InjectInput) (*InjectOutput, error) {
	cfg := d.cfg()

	// Inputs and paths are validated before the container is loaded.
	if err := ValidateContainerPath(input.ContainerPath); err != nil {
		return nil, err
	}
	files, err := ExpandInputs(input.Files, cfg.ScriptExt)
	if err != nil {
		return nil, err
	}
	outputPath := input.OutputPath
	if outputPath == "" {
		outputPath = UpdatedPath(input.ContainerPath, cfg.UpdatedSuffix)
	}
	if err := ValidateOutputPath(input.ContainerPath, outputPath); err != nil {
		return nil, err
	}

	c, err := loadFresh(input.ContainerPath)
	if err != nil {
		return nil, err
	}

	records := c.Records()
	collisions := script.Collisions(records)
	colliding := make(map[string]script.Collision, len(collisions))
	for _, col := range collisions {
		colliding[col.SafeName] = col
	}

	output := &InjectOutput{Results: make([]InjectFileResult, 0, len(files))}
	reported := make(map[string]bool)
	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("inject")
		default:
		}

		result := injectFile(d, cfg.Level(), records, file)
		if col, ok := colliding[result.SafeName]; ok && !reported[col.SafeName] {
			d.logf("name collision: %s matches %d scripts, using %q", col.SafeName, len(col.Names), result.Script)
			output.Collisions = append(output.Collisions, col)
			reported[col.SafeName] = true
		}
		output.Results = append(output.Results, result)
		switch result.Status {
		case StatusUpdated:
			output.Tally.Updated++
		case StatusUnchanged:
			output.Tally.Unchanged++
		case StatusNotFound:
			output.Tally.NotFound++
		default:
			output.Tally.Errors++
		}
	}

	if output.Tally.Updated > 0 {
		data, err := c.Encode()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := writeFileAtomic(outputPath, data, 0644); err != nil {
			return nil, err
		}
		output.OutputPath = outputPath
	}

	d.journal(db.Run{
		Op:            db.OpInject,
		ContainerPath: input.ContainerPath,
		OutputPath:    output.OutputPath,
		Updated:       output.Tally.Updated,
		Unchanged:     output.Tally.Unchanged,
		NotFound:      output.Tally.NotFound,
		Errors:        output.Tally.Errors,
	})

	return output, nil
}

// injectFile matches one file to a record and replaces its payload.
func injectFile(d Deps, level int, records []*script.Record, file string) InjectFileResult {
	safeName := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	result := InjectFileResult{File: file, SafeName: safeName}

	r, ok := script.FindByIdentifier(records, safeName)
	if !ok {
		d.logf("no script matches %s", file)
		result.Status = StatusNotFound
		return result
	}
	result.Script = r.Name.Text
	result.Index = r.Index

	data, err := os.ReadFile(file)
	if err != nil {
		d.logf("failed to read %s: %v", file, err)
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	if current, err := r.Source(); err == nil && bytes.Equal([]byte(current), data) {
		result.Status = StatusUnchanged
		return result
	}

	payload, err := script.Compress(data, level)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	r.SetPayload(payload)
	result.Status = StatusUpdated
	return result
}
