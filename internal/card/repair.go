package card

import (
	"regexp"
	"strings"
)

var (
	headingPrefix  = regexp.MustCompile(`(\S)\s*(#{1,6}\s)`)
	listItemPrefix = regexp.MustCompile(`(\S)\s*(- )`)
	tagMarker      = regexp.MustCompile(`(\S)\s*(</?[A-Za-z][A-Za-z0-9]*>)`)

	mesExampleTokens = regexp.MustCompile(`\s*(<START>|\{\{user\}\}:|\{\{char\}\}:)`)
)

// RepairMarkdown inserts newlines before heading/list/tag markers when a
// markdown field has been flattened to a single line by the model that
// produced it. A field already containing newlines is left unchanged
// (§4.6.12, property #16).
func RepairMarkdown(field string) string {
	if strings.Contains(field, "\n") {
		return field
	}

	repaired := field
	repaired = headingPrefix.ReplaceAllString(repaired, "$1\n$2")
	repaired = listItemPrefix.ReplaceAllString(repaired, "$1\n$2")
	repaired = tagMarker.ReplaceAllString(repaired, "$1\n$2")
	return repaired
}

// RepairMesExample normalizes whitespace before <START>, {{user}}:, and
// {{char}}: tokens to a single preceding newline, then trims the result
// (§4.6.12, property #15).
func RepairMesExample(field string) string {
	repaired := mesExampleTokens.ReplaceAllString(field, "\n$1")
	return strings.TrimSpace(repaired)
}
