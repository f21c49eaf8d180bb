package ingestion

import (
	"regexp"
	"strings"
)

var (
	hyphenWrapPattern  = regexp.MustCompile(`(\w+)-\s+(\w+)`)
	disallowedPattern  = regexp.MustCompile(`[^A-Za-z0-9.,!?\s]`)
	whitespaceRunRegex = regexp.MustCompile(`\s{2,}`)
)

// Normalize compacts extracted text for prompting: hyphenated line wraps are
// joined, characters outside [A-Za-z0-9.,!?] and whitespace are dropped, and
// whitespace runs collapse to a single space. Normalize is idempotent.
//
// Stripping runs before collapsing so that removed punctuation cannot leave a
// double space behind.
func Normalize(raw string) string {
	text := hyphenWrapPattern.ReplaceAllString(raw, "${1}${2}")
	text = disallowedPattern.ReplaceAllString(text, "")
	text = whitespaceRunRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// tidyLines normalises line endings and trailing blanks without touching
// content. PDF text goes through it before Normalize.
func tidyLines(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
