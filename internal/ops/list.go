package ops

import (
	"context"

	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/marshal"
	"github.com/hpungsan/rxscripts/internal/script"
)

// Entry kinds and decode statuses reported by List.
const (
	KindRecord = "record"
	KindOpaque = "opaque"

	DecodeOK = "ok"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	ContainerPath string
}

// ListEntry describes one top-level element of the container.
type ListEntry struct {
	Index        int    `json:"index"`
	Kind         string `json:"kind"`
	ID           *int64 `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	NameOutcome  string `json:"name_outcome,omitempty"`
	SafeName     string `json:"safe_name,omitempty"`
	PayloadBytes int    `json:"payload_bytes,omitempty"`
	SourceBytes  int    `json:"source_bytes,omitempty"`
	Status       string `json:"status,omitempty"` // ok, corrupt, not_utf8
	Summary      string `json:"summary,omitempty"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Entries    []ListEntry        `json:"entries"`
	Records    int                `json:"records"`
	Opaque     int                `json:"opaque"`
	Undecoded  int                `json:"undecoded"`
	Collisions []script.Collision `json:"collisions,omitempty"`
}

// List describes every entry of a container in order.
func List(ctx context.Context, d Deps, input ListInput) (*ListOutput, error) {
	c, err := d.load(input.ContainerPath)
	if err != nil {
		return nil, err
	}

	output := &ListOutput{
		Entries:    make([]ListEntry, 0, len(c.Entries)),
		Records:    len(c.Records()),
		Opaque:     c.OpaqueCount(),
		Collisions: script.Collisions(c.Records()),
	}

	for _, e := range c.Entries {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("list")
		}
		switch e := e.(type) {
		case *script.Record:
			output.Entries = append(output.Entries, describeRecord(e, &output.Undecoded))
		case *script.Opaque:
			output.Entries = append(output.Entries, ListEntry{
				Index:   e.Index,
				Kind:    KindOpaque,
				Summary: marshal.Inspect(e.Value),
			})
		}
	}
	return output, nil
}

func describeRecord(r *script.Record, undecoded *int) ListEntry {
	id := r.ID()
	entry := ListEntry{
		Index:        r.Index,
		Kind:         KindRecord,
		ID:           &id,
		Name:         r.Name.Text,
		NameOutcome:  string(r.Name.Outcome),
		SafeName:     r.SafeName,
		PayloadBytes: len(r.Payload()),
		Status:       DecodeOK,
	}
	src, err := r.Source()
	if err != nil {
		*undecoded++
		entry.Status = err.Error()
		if df, ok := err.(*script.DecodeFailure); ok {
			entry.Status = string(df.Kind)
		}
		return entry
	}
	entry.SourceBytes = len(src)
	return entry
}
