package extract

import (
	"strings"
)

// leadIns are chatty openers that precede the real content of a text artifact.
// Each is matched as a case-insensitive prefix of a leading line.
var leadIns = []string{
	"here is",
	"here's",
	"here are",
	"sure,",
	"sure!",
	"okay,",
	"certainly",
	"absolutely",
	"of course",
	"i'll ",
	"i will ",
	"i've ",
	"let me ",
	"below is",
	"based on",
	"voici",
}

// signOffs are closing remarks appended after the content.
var signOffs = []string{
	"let me know",
	"feel free to",
	"hope this helps",
	"good luck",
	"would you like",
	"if you need",
	"if you'd like",
	"do you want",
	"is there anything",
}

// maxLeadInLines bounds how much of the head Sanitize may remove.
const maxLeadInLines = 3

// Sanitize trims conversational lead-ins and sign-offs from a text artifact.
func Sanitize(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return content
	}
	return strings.TrimSpace(dropSignOff(dropLeadIn(content)))
}

func dropLeadIn(content string) string {
	lines := strings.SplitN(content, "\n", maxLeadInLines+2)
	n := 0
	for n < len(lines) && n < maxLeadInLines {
		line := strings.TrimSpace(lines[n])
		if line != "" && !hasAnyPrefix(line, leadIns) {
			break
		}
		n++
	}
	if n == 0 || n == len(lines) {
		return content
	}
	return strings.Join(lines[n:], "\n")
}

func dropSignOff(content string) string {
	lines := strings.Split(content, "\n")
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line != "" && !hasAnyPrefix(line, signOffs) {
			break
		}
		end--
	}
	if end == 0 {
		return content
	}
	return strings.Join(lines[:end], "\n")
}

func hasAnyPrefix(line string, prefixes []string) bool {
	lower := strings.ToLower(line)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
