package ops

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/rxscripts/internal/config"
	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/script"
)

// Deps carries the shared collaborators of every operation. All fields are
// optional: a nil Config means defaults, a nil DB disables the journal, a nil
// Cache loads containers from disk each time, and a nil Logger uses log.Default.
type Deps struct {
	DB     *sql.DB
	Config *config.Config
	Cache  *script.Cache
	Logger *log.Logger
}

func (d Deps) cfg() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

func (d Deps) logf(format string, args ...any) {
	if d.Logger == nil {
		log.Printf(format, args...)
		return
	}
	d.Logger.Printf(format, args...)
}

// SkippedRecord is a record left out of an operation because its payload
// did not decode.
type SkippedRecord struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// skipCollector logs each skipped record and appends it to dst.
func (d Deps) skipCollector(dst *[]SkippedRecord) func(*script.Record, error) {
	return func(r *script.Record, err error) {
		d.logf("skipping script %q (#%d): %v", r.Name.Text, r.Index, err)
		reason := err.Error()
		if df, ok := err.(*script.DecodeFailure); ok {
			reason = string(df.Kind)
		}
		*dst = append(*dst, SkippedRecord{Index: r.Index, Name: r.Name.Text, Reason: reason})
	}
}

// logCollisions reports groups of display names sharing one safe identifier.
func (d Deps) logCollisions(collisions []script.Collision) {
	for _, c := range collisions {
		d.logf("name collision: %s <- %s", c.SafeName, strings.Join(quoteAll(c.Names), ", "))
	}
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// load opens a container for reading, through the cache when one is set.
func (d Deps) load(path string) (*script.Container, error) {
	if err := ValidateContainerPath(path); err != nil {
		return nil, err
	}
	c, err := d.Cache.Load(path)
	if err != nil {
		return nil, errors.NewContainerLoadFailed(path, err)
	}
	return c, nil
}

// loadFresh always reads the container from disk. Used by operations that
// mutate records, so cached containers are never modified.
func loadFresh(path string) (*script.Container, error) {
	if err := ValidateContainerPath(path); err != nil {
		return nil, err
	}
	c, err := script.Load(path)
	if err != nil {
		return nil, errors.NewContainerLoadFailed(path, err)
	}
	return c, nil
}

// journal appends a run record. Failures are logged and never returned.
func (d Deps) journal(run db.Run) {
	if d.DB == nil || d.cfg().DisableJournal {
		return
	}
	id, err := generateULID()
	if err != nil {
		d.logf("journal: %v", err)
		return
	}
	run.ID = id
	run.CreatedAt = time.Now().Unix()
	if abs, err := filepath.Abs(run.ContainerPath); err == nil {
		run.ContainerPath = abs
	}
	if err := db.InsertRun(d.DB, &run); err != nil {
		d.logf("journal: %v", err)
	}
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Address selects one record, either by container position or by exact
// display name.
type Address struct {
	ByIndex bool
	Index   int
	Name    string
}

// ValidateAddress validates addressing parameters and returns an Address.
// Rules:
// - Exactly one of index or name must be given
// - Index must be non-negative
func ValidateAddress(index *int, name string) (*Address, error) {
	hasName := name != ""
	if index != nil && hasName {
		return nil, errors.NewInvalidRequest("cannot specify both index and name; use one addressing mode")
	}
	if index == nil && !hasName {
		return nil, errors.NewInvalidRequest("must specify either index or name")
	}
	if index != nil {
		if *index < 0 {
			return nil, errors.NewInvalidRequest("index must not be negative")
		}
		return &Address{ByIndex: true, Index: *index}, nil
	}
	return &Address{Name: name}, nil
}

// resolve finds the addressed script and decompresses it.
func (a *Address) resolve(d Deps, c *script.Container) (script.Script, error) {
	if a.ByIndex {
		if a.Index >= len(c.Entries) {
			return script.Script{}, errors.NewNotFound(fmt.Sprintf("#%d", a.Index))
		}
		r, ok := c.Entries[a.Index].(*script.Record)
		if !ok {
			return script.Script{}, errors.NewInvalidRequest(fmt.Sprintf("entry #%d is not a script record", a.Index))
		}
		src, err := r.Source()
		if err != nil {
			return script.Script{}, errors.NewDecodeFailed(r.Name.Text, err)
		}
		return script.Script{Record: r, Source: src}, nil
	}

	var skipped []SkippedRecord
	s, ok := c.FindByDisplayName(a.Name, d.skipCollector(&skipped))
	if !ok {
		return script.Script{}, errors.NewNotFound(a.Name)
	}
	return s, nil
}
