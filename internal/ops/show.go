package ops

import (
	"context"

	"github.com/hpungsan/rxscripts/internal/errors"
)

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	ContainerPath string
	Index         *int   // container position
	Name          string // exact display name
}

// ShowOutput contains the result of the Show operation.
type ShowOutput struct {
	Index    int    `json:"index"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SafeName string `json:"safe_name"`
	Source   string `json:"source"`
}

// Show returns the decompressed source of one record, addressed by index or
// by exact display name.
func Show(ctx context.Context, d Deps, input ShowInput) (*ShowOutput, error) {
	addr, err := ValidateAddress(input.Index, input.Name)
	if err != nil {
		return nil, err
	}

	c, err := d.load(input.ContainerPath)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("show")
	}

	s, err := addr.resolve(d, c)
	if err != nil {
		return nil, err
	}

	return &ShowOutput{
		Index:    s.Record.Index,
		ID:       s.Record.ID(),
		Name:     s.Record.Name.Text,
		SafeName: s.Record.SafeName,
		Source:   s.Source,
	}, nil
}
