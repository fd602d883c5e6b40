package script

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/rxscripts/internal/marshal"
)

// NameOutcome records how a display name was obtained from the raw name.
type NameOutcome string

const (
	NameDecoded  NameOutcome = "decoded"  // raw bytes were valid UTF-8
	NameFallback NameOutcome = "fallback" // lossy rendering of bytes or a non-string node
)

// DisplayName is the human-readable form of a record's raw name.
type DisplayName struct {
	Text    string
	Outcome NameOutcome
}

var (
	underscoreThenSpace = regexp.MustCompile(`_\s+`)
	spaceThenUnderscore = regexp.MustCompile(`\s+_`)
)

// NormalizeName renders a raw name node as text. Byte strings that are valid
// UTF-8 decode as-is; invalid bytes are escaped as \xNN; any other node type
// is rendered with marshal.Inspect. It never fails.
func NormalizeName(raw marshal.Value) DisplayName {
	b, ok := marshal.AsBytes(raw)
	if !ok {
		return DisplayName{Text: marshal.Inspect(raw), Outcome: NameFallback}
	}
	if utf8.Valid(b) {
		return DisplayName{Text: string(b), Outcome: NameDecoded}
	}
	return DisplayName{Text: escapeInvalidUTF8(b), Outcome: NameFallback}
}

// escapeInvalidUTF8 keeps valid runes and replaces every byte that is not
// part of one with a \xNN escape.
func escapeInvalidUTF8(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			fmt.Fprintf(&sb, `\x%02x`, b[0])
			b = b[1:]
			continue
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// Sanitize maps a display name to a filesystem-safe identifier:
// 1. Letters, digits, space, underscore and hyphen are kept; everything else becomes '_'
// 2. Whitespace runs after an underscore are removed ("__ Name" -> "__Name")
// 3. Whitespace runs before an underscore are removed ("Name __" -> "Name__")
func Sanitize(display string) string {
	var sb strings.Builder
	sb.Grow(len(display))
	for _, r := range display {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '_' || r == '-' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}

	s := underscoreThenSpace.ReplaceAllString(sb.String(), "_")
	return spaceThenUnderscore.ReplaceAllString(s, "_")
}

// IsBlankIdentifier reports whether a safe identifier has no substance once
// underscores, hyphens and surrounding whitespace are removed. Such names
// are not written to disk.
func IsBlankIdentifier(id string) bool {
	stripped := strings.NewReplacer("_", "", "-", "").Replace(id)
	return strings.TrimSpace(stripped) == ""
}

// FindByIdentifier returns the first record whose safe identifier equals id.
func FindByIdentifier(records []*Record, id string) (*Record, bool) {
	for _, r := range records {
		if r.SafeName == id {
			return r, true
		}
	}
	return nil, false
}

// Collision is a set of records whose display names share one safe identifier.
type Collision struct {
	SafeName string   `json:"safe_name"`
	Names    []string `json:"names"`
}

// Collisions groups records by safe identifier and returns the groups with
// more than one member, ordered by identifier. Blank identifiers are ignored.
func Collisions(records []*Record) []Collision {
	groups := make(map[string][]string)
	for _, r := range records {
		if IsBlankIdentifier(r.SafeName) {
			continue
		}
		groups[r.SafeName] = append(groups[r.SafeName], r.Name.Text)
	}

	var result []Collision
	for id, names := range groups {
		if len(names) > 1 {
			result = append(result, Collision{SafeName: id, Names: names})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SafeName < result[j].SafeName })
	return result
}
