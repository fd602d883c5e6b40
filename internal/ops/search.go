package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/search"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	ContainerPath string
	Identifier    string
	Precise       bool // list identifiers with the tree-sitter parser
}

// SearchOutput contains the result of the Search operation. Identifiers is
// only filled when nothing matched.
type SearchOutput struct {
	Identifier  string          `json:"identifier"`
	Matches     []search.Match  `json:"matches"`
	Identifiers []string        `json:"identifiers,omitempty"`
	Skipped     []SkippedRecord `json:"skipped,omitempty"`
}

// Names returns the display names of matching scripts in container order.
func (o *SearchOutput) Names() []string {
	names := make([]string, len(o.Matches))
	for i, m := range o.Matches {
		names[i] = m.Name
	}
	return names
}

// Search finds scripts defining input.Identifier. With no match it returns
// every defined identifier instead, sorted case-insensitively.
func Search(ctx context.Context, d Deps, input SearchInput) (*SearchOutput, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, errors.NewInvalidRequest("identifier is required")
	}

	c, err := d.load(input.ContainerPath)
	if err != nil {
		return nil, err
	}

	output := &SearchOutput{Identifier: identifier}
	scripts := c.Scripts(d.skipCollector(&output.Skipped))

	output.Matches = search.FindDefinitions(scripts, identifier)
	if output.Matches == nil {
		output.Matches = []search.Match{}
	}
	if len(output.Matches) > 0 {
		return output, nil
	}

	if input.Precise {
		ids, err := search.ParseIdentifiers(ctx, scripts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewCancelled("search")
			}
			return nil, errors.NewInternal(err)
		}
		output.Identifiers = ids
	} else {
		output.Identifiers = search.ListIdentifiers(scripts)
	}
	if output.Identifiers == nil {
		output.Identifiers = []string{}
	}
	return output, nil
}
