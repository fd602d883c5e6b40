// Package search finds method definitions in decompressed script sources.
// Matching is lexical and best effort; ParseIdentifiers offers a tree-sitter
// alternative for listing.
package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/hpungsan/rxscripts/internal/script"
)

// receiver matches an optional "self." or "Const::Path." qualifier.
const receiver = `(?:(?:self|[A-Za-z_]\w*(?:::[A-Za-z_]\w*)*)\.)?`

var definitionPattern = regexp.MustCompile(`\bdef[ \t]+` + receiver + `([A-Za-z_]\w*[!?]?)`)

// Match is a script containing at least one definition of the searched name.
type Match struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Lines []int  `json:"lines"`
}

// definitionRegexp builds the pattern for one exact method name. The name
// must be followed by an argument list, a separator, whitespace and more
// text, or the end of the line. The whole match stays on one line.
func definitionRegexp(identifier string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)\bdef[ \t]+` + receiver + regexp.QuoteMeta(identifier) + `(?:[ \t]*[(;#]|[ \t]+\S|[ \t]*\r?$)`)
}

// FindDefinitions returns, in container order, every script that defines
// identifier, with the 1-based lines of each definition.
func FindDefinitions(scripts []script.Script, identifier string) []Match {
	if identifier == "" {
		return nil
	}
	re := definitionRegexp(identifier)

	var matches []Match
	for _, s := range scripts {
		locs := re.FindAllStringIndex(s.Source, -1)
		if len(locs) == 0 {
			continue
		}
		m := Match{Name: s.Record.Name.Text, Index: s.Record.Index}
		for _, loc := range locs {
			m.Lines = append(m.Lines, strings.Count(s.Source[:loc[0]], "\n")+1)
		}
		matches = append(matches, m)
	}
	return matches
}

// Defines reports whether source contains a definition of identifier.
func Defines(source, identifier string) bool {
	return identifier != "" && definitionRegexp(identifier).MatchString(source)
}

// Identifiers returns the method names defined in one source, in order of
// appearance, with string literals and comments blanked out first.
func Identifiers(source string) []string {
	var names []string
	for _, m := range definitionPattern.FindAllStringSubmatch(scrub(source), -1) {
		if m[1] == "end" {
			continue
		}
		names = append(names, m[1])
	}
	return names
}

// ListIdentifiers collects every defined method name across scripts,
// deduplicated and sorted case-insensitively.
func ListIdentifiers(scripts []script.Script) []string {
	seen := make(map[string]struct{})
	for _, s := range scripts {
		for _, name := range Identifiers(s.Source) {
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	SortIdentifiers(names)
	return names
}

// SortIdentifiers orders names by their case-folded form, breaking ties by
// the original spelling so the order is deterministic.
func SortIdentifiers(names []string) {
	fold := cases.Fold()
	keys := make(map[string]string, len(names))
	for _, n := range names {
		keys[n] = fold.String(n)
	}
	sort.Slice(names, func(i, j int) bool {
		ki, kj := keys[names[i]], keys[names[j]]
		if ki != kj {
			return ki < kj
		}
		return names[i] < names[j]
	})
}
