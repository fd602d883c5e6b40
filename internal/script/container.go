// Package script models an RPG Maker XP Scripts container: a Marshal-encoded
// array of [id, name, zlib source] records.
package script

import (
	"errors"
	"fmt"
	"os"

	"github.com/hpungsan/rxscripts/internal/marshal"
)

// ErrNotContainer is returned when the decoded root is not an array.
var ErrNotContainer = errors.New("root value is not an array")

// Container is a decoded Scripts file. Entries mirror the top-level array
// one-to-one; records are mutated in place and the whole graph is re-encoded.
type Container struct {
	Path    string
	Entries []Entry

	root    *marshal.Array
	records []*Record
}

// Script is a record whose payload decompressed successfully.
type Script struct {
	Record *Record
	Source string
}

// Load reads and parses a container file.
func Load(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes container bytes and classifies every top-level element.
func Parse(data []byte) (*Container, error) {
	v, err := marshal.Decode(data)
	if err != nil {
		return nil, err
	}
	root, ok := v.(*marshal.Array)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrNotContainer, marshal.Inspect(v))
	}
	return fromRoot(root), nil
}

// New builds a container around the given top-level values.
func New(values ...marshal.Value) *Container {
	return fromRoot(&marshal.Array{Elems: values})
}

func fromRoot(root *marshal.Array) *Container {
	c := &Container{root: root, Entries: make([]Entry, len(root.Elems))}
	for i, v := range root.Elems {
		e := classify(i, v)
		c.Entries[i] = e
		if r, ok := e.(*Record); ok {
			c.records = append(c.records, r)
		}
	}
	return c
}

// Records returns the well-formed script records in container order.
func (c *Container) Records() []*Record {
	return c.records
}

// OpaqueCount is the number of top-level elements that are not records.
func (c *Container) OpaqueCount() int {
	return len(c.Entries) - len(c.records)
}

// Encode serializes the container, including every opaque element.
func (c *Container) Encode() ([]byte, error) {
	return marshal.Encode(c.root)
}

// Scripts decompresses every record in order. Records that fail are passed
// to onSkip (when non-nil) and left out of the result.
func (c *Container) Scripts(onSkip func(*Record, error)) []Script {
	scripts := make([]Script, 0, len(c.records))
	for _, r := range c.records {
		src, err := r.Source()
		if err != nil {
			if onSkip != nil {
				onSkip(r, err)
			}
			continue
		}
		scripts = append(scripts, Script{Record: r, Source: src})
	}
	return scripts
}

// FindByDisplayName returns the first decodable script whose display name
// equals name exactly.
func (c *Container) FindByDisplayName(name string, onSkip func(*Record, error)) (Script, bool) {
	for _, r := range c.records {
		if r.Name.Text != name {
			continue
		}
		src, err := r.Source()
		if err != nil {
			if onSkip != nil {
				onSkip(r, err)
			}
			continue
		}
		return Script{Record: r, Source: src}, true
	}
	return Script{}, false
}
