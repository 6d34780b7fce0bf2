package extract

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind is the semantic type of a generated artifact.
type Kind string

// Artifact kinds.
const (
	KindHTML Kind = "html"
	KindSQL  Kind = "sql"
	KindText Kind = "text"
)

const fence = "```"

// kindTags lists the fence info strings accepted for each kind.
var kindTags = map[Kind][]string{
	KindHTML: {"html", "htm", "xhtml"},
	KindSQL:  {"sql", "postgresql", "postgres", "sqlite", "mysql"},
	KindText: {"text", "txt", "plaintext", "markdown", "md"},
}

// ParseKind converts a flag value to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindTags[k]; !ok {
		return "", fmt.Errorf("unknown kind %q (html, sql, text)", s)
	}
	return k, nil
}

// Extract returns the cleaned artifact body for kind. It never fails.
func Extract(raw string, kind Kind) string {
	body, _ := ExtractReport(raw, kind)
	return body
}

// ExtractReport is Extract that also reports whether the text had no fence at
// all and was used as-is. Text with fences but only blank blocks yields "".
func ExtractReport(raw string, kind Kind) (body string, fellBack bool) {
	if !strings.Contains(raw, fence) {
		return strings.TrimSpace(raw), true
	}
	if body, ok := findTagged(raw, kindTags[kind]); ok {
		return body, false
	}
	for _, b := range scanBlocks(raw) {
		if body := strings.TrimSpace(b); body != "" {
			return body, false
		}
	}
	return "", false
}

// findTagged returns the first non-blank block opened by a fence followed by
// one of tags. The block ends at the first fence after the opener, or at the
// end of the text when the opener is never closed.
func findTagged(raw string, tags []string) (string, bool) {
	pos := 0
	for {
		open := strings.Index(raw[pos:], fence)
		if open < 0 {
			return "", false
		}
		pos += open + len(fence)

		i := skipBlanks(raw, pos)
		n := tagPrefix(raw[i:], tags)
		if n == 0 {
			continue
		}
		start := bodyAfterTag(raw, i+n)
		end := strings.Index(raw[start:], fence)
		if end < 0 {
			body := strings.TrimSpace(raw[start:])
			return body, body != ""
		}
		if body := strings.TrimSpace(raw[start : start+end]); body != "" {
			return body, true
		}
		pos = start + end + len(fence)
	}
}

// scanBlocks pairs fences left to right and returns each block's interior.
// An opening fence with no closing fence runs to the end of the text, which is
// what a truncated response looks like.
func scanBlocks(raw string) []string {
	var blocks []string
	pos := 0
	for {
		open := strings.Index(raw[pos:], fence)
		if open < 0 {
			return blocks
		}
		start := bodyStart(raw, pos+open+len(fence))
		end := strings.Index(raw[start:], fence)
		if end < 0 {
			return append(blocks, raw[start:])
		}
		blocks = append(blocks, raw[start:start+end])
		pos = start + end + len(fence)
	}
}

// bodyStart returns where the body of a block opened just before start
// begins. "```js\n<p>" starts after the newline; "```html<p>" starts right
// after the recognised tag; "```<A>```" keeps "<A>" as the body.
func bodyStart(raw string, start int) int {
	i := skipBlanks(raw, start)
	tagStart := i
	for i < len(raw) && isInfoByte(raw[i]) {
		i++
	}
	if i == tagStart {
		return start
	}
	if next := bodyAfterTag(raw, i); next != i {
		return next
	}
	if known := knownTagPrefix(raw[tagStart:]); known > 0 {
		return tagStart + known
	}
	return start
}

// bodyAfterTag returns the offset after the end of the info line when only
// whitespace follows the tag ending at i, and i itself otherwise.
func bodyAfterTag(raw string, i int) int {
	j := i
	for j < len(raw) && (raw[j] == ' ' || raw[j] == '\t' || raw[j] == '\r') {
		j++
	}
	switch {
	case j == len(raw):
		return j
	case raw[j] == '\n':
		return j + 1
	default:
		return i
	}
}

func skipBlanks(raw string, i int) int {
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t') {
		i++
	}
	return i
}

// tagPrefix returns the length of the longest of tags that s starts with,
// compared case-insensitively and followed by a non-word character or the
// end of s. It returns 0 when none match.
func tagPrefix(s string, tags []string) int {
	lower := strings.ToLower(s)
	best := 0
	for _, tag := range tags {
		if !strings.HasPrefix(lower, tag) || len(tag) <= best {
			continue
		}
		if len(lower) == len(tag) || !isWordRune(rune(lower[len(tag)])) {
			best = len(tag)
		}
	}
	return best
}

// knownTagPrefix is tagPrefix over the tags of every kind.
func knownTagPrefix(s string) int {
	best := 0
	for _, tags := range kindTags {
		best = max(best, tagPrefix(s, tags))
	}
	return best
}

func isInfoByte(c byte) bool {
	return c == '-' || c == '_' || c == '+' || c == '.' || c == '#' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
