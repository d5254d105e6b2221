package move

import (
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pathReplacements maps filesystem-hostile patterns in a path segment to safe
// replacements. Applied in order. The trailing-dot rule sees the segment
// before whitespace trimming, so a dot exposed by trimming survives:
// "name. " becomes "name.".
var pathReplacements = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`^\.`), "_"},             // leading dot hides the entry
	{regexp.MustCompile(`[<>:"\?\*\|\\/]`), "_"}, // reserved on Windows and/or path separators
	{regexp.MustCompile(`\.$`), "_"},             // trailing dots are stripped on Windows
	{regexp.MustCompile(`\s+$`), ""},
}

// sanitizeSegment rewrites one path segment so it is safe on common
// filesystems.
func sanitizeSegment(segment string) string {
	for _, r := range pathReplacements {
		segment = r.pattern.ReplaceAllString(segment, r.repl)
	}
	return segment
}

// foldTransformer decomposes characters and strips combining marks, turning
// "é" into "e".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// asciiFold approximates s with ASCII by dropping diacritics. Characters with
// no ASCII equivalent pass through unchanged.
func asciiFold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}
