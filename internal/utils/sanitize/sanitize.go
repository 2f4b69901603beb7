package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict is a cached bluemonday policy that removes all HTML tags and attributes.
// It's safe for concurrent use as bluemonday.Policy is read-only after build.
// WARNING: Never call mutating helpers (e.g. AddAttr, AllowElements) on this policy
// after initialization as it would create a data race.
var strict = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true) // Prevents word concatenation
	return p
}()

// strip removes HTML, unescapes entities and normalizes non-breaking spaces.
func strip(s string) string {
	out := strict.Sanitize(s)
	out = html.UnescapeString(out)
	return strings.ReplaceAll(out, "\u00a0", " ")
}

// Title cleans a note title: HTML is stripped and all whitespace, newlines
// included, collapses to single spaces.
//
// Examples:
//   - "<b>Shopping</b>  list" -> "Shopping list"
//   - "  two\nlines " -> "two lines"
//   - "   " -> ""
func Title(s string) string {
	return strings.Join(strings.Fields(strip(s)), " ")
}

// Content cleans a note body. HTML is stripped, every line is trimmed and its
// inner whitespace collapsed, but line breaks survive.
//
// Examples:
//   - "<p>hi</p>" -> "hi"
//   - "a  b\n  c" -> "a b\nc"
//   - "&nbsp;test" -> "test"
func Content(s string) string {
	lines := strings.Split(strip(s), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
