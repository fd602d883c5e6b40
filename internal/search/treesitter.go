package search

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/hpungsan/rxscripts/internal/script"
)

// methodNodeTypes are the Ruby grammar nodes that define a method.
var methodNodeTypes = map[string]bool{
	"method":           true,
	"singleton_method": true,
}

// ParseIdentifiers lists defined method names by parsing each source with
// the tree-sitter Ruby grammar. Unlike ListIdentifiers it ignores text in
// heredocs and percent literals and finds definitions the lexical pattern
// cannot see.
func ParseIdentifiers(ctx context.Context, scripts []script.Script) ([]string, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(ruby.GetLanguage())

	seen := make(map[string]struct{})
	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := []byte(s.Source)
		tree, err := parser.ParseCtx(ctx, nil, source)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.Record.Name.Text, err)
		}
		walk(tree.RootNode(), func(node *sitter.Node) {
			if !methodNodeTypes[node.Type()] {
				return
			}
			if name := node.ChildByFieldName("name"); name != nil {
				seen[name.Content(source)] = struct{}{}
			}
		})
		tree.Close()
	}
	return sortedKeys(seen), nil
}

// walk performs a depth-first traversal, calling fn for each node.
func walk(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), fn)
	}
}
