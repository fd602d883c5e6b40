package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/script"
)

// TimestampLayout names extract-all output directories (local time).
const TimestampLayout = "2006-01-02_15-04-05"

// ExtractAllInput contains parameters for the ExtractAll operation.
type ExtractAllInput struct {
	ContainerPath string
	OutputDir     string    // optional, default: <output_root>/<timestamp>
	Now           time.Time // optional, for the default directory name
}

// ExtractAllOutput contains the result of the ExtractAll operation.
type ExtractAllOutput struct {
	Directory  string             `json:"directory"`
	Written    int                `json:"written"`
	Files      []string           `json:"files"`
	Blank      []string           `json:"blank,omitempty"`
	Skipped    []SkippedRecord    `json:"skipped,omitempty"`
	Collisions []script.Collision `json:"collisions,omitempty"`
}

// ExtractAll writes every decodable record to <dir>/<safe name><ext>.
// Records whose payload fails to decode are logged and skipped; names that
// sanitize to nothing are not written. When two names share a safe
// identifier the later record overwrites the earlier file.
func ExtractAll(ctx context.Context, d Deps, input ExtractAllInput) (*ExtractAllOutput, error) {
	cfg := d.cfg()
	c, err := d.load(input.ContainerPath)
	if err != nil {
		return nil, err
	}

	dir := input.OutputDir
	if dir == "" {
		now := input.Now
		if now.IsZero() {
			now = time.Now()
		}
		dir = filepath.Join(cfg.OutputRoot, now.Format(TimestampLayout))
	}

	output := &ExtractAllOutput{Directory: dir, Files: []string{}}
	output.Collisions = script.Collisions(c.Records())
	d.logCollisions(output.Collisions)

	seen := make(map[string]bool)
	dirReady := false
	for _, s := range c.Scripts(d.skipCollector(&output.Skipped)) {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("extract")
		default:
		}

		if script.IsBlankIdentifier(s.Record.SafeName) {
			output.Blank = append(output.Blank, s.Record.Name.Text)
			continue
		}

		if !dirReady {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.NewIOFailed(dir, err)
			}
			dirReady = true
		}

		path := filepath.Join(dir, s.Record.SafeName+cfg.ScriptExt)
		if err := os.WriteFile(path, []byte(s.Source), 0644); err != nil {
			d.logf("failed to save script %q: %v", s.Record.Name.Text, err)
			output.Skipped = append(output.Skipped, SkippedRecord{
				Index:  s.Record.Index,
				Name:   s.Record.Name.Text,
				Reason: fmt.Sprintf("write: %v", err),
			})
			continue
		}
		output.Written++
		if !seen[path] {
			seen[path] = true
			output.Files = append(output.Files, path)
		}
	}

	d.journal(db.Run{
		Op:            db.OpExtractAll,
		ContainerPath: input.ContainerPath,
		OutputPath:    dir,
		Written:       output.Written,
		Skipped:       len(output.Skipped),
	})

	return output, nil
}
