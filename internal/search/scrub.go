package search

import "strings"

// scrub replaces the contents of quoted strings, line comments and
// =begin/=end blocks with spaces, keeping newlines so line numbers survive.
// Heredocs and percent literals are not recognized.
func scrub(src string) string {
	out := []byte(src)
	blank := func(from, to int) {
		for i := from; i < to; i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '=' && atLineStart(src, i) && strings.HasPrefix(src[i:], "=begin"):
			end := strings.Index(src[i:], "\n=end")
			if end < 0 {
				blank(i, len(src))
				return string(out)
			}
			stop := i + end + len("\n=end")
			blank(i, stop)
			i = stop
		case c == '#':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			blank(i, i+end)
			i += end
		case c == '"' || c == '\'' || c == '`':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j > len(src) {
				j = len(src)
			}
			blank(i+1, j)
			i = j + 1
		case c == '?' && i+1 < len(src) && (src[i+1] == '"' || src[i+1] == '\'' || src[i+1] == '#'):
			// character literal such as ?" or ?#
			i += 2
		default:
			i++
		}
	}
	return string(out)
}

func atLineStart(src string, i int) bool {
	return i == 0 || src[i-1] == '\n'
}
