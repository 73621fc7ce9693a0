package vendorformat

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Sanitize replaces any character outside [A-Za-z0-9._-] with an
// underscore and trims leading/trailing underscores (§4.3).
func Sanitize(s string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(s, "_")
	return strings.Trim(sanitized, "_")
}

// DateTag renders a unix-seconds timestamp as yyyymmdd (UTC), or
// "unknown-date" when ts is nil.
func DateTag(ts *float64) string {
	if ts == nil {
		return "unknown-date"
	}
	t := time.Unix(int64(*ts), 0).UTC()
	return t.Format("20060102")
}

// FilenameBuilder assigns collision-free filenames within one extraction
// run, appending _2, _3, ... on repeats (§4.3).
type FilenameBuilder struct {
	seen map[string]int
}

// NewFilenameBuilder creates an empty collision tracker.
func NewFilenameBuilder() *FilenameBuilder {
	return &FilenameBuilder{seen: make(map[string]int)}
}

// Build produces "<modelTag>_<yyyymmdd>_<sanitizedId>.<ext>", suffixing
// with _2, _3, ... on collision with a previously built name.
func (b *FilenameBuilder) Build(modelTag string, earliestTimestamp *float64, conversationID, ext string) string {
	stem := fmt.Sprintf("%s_%s_%s", Sanitize(modelTag), DateTag(earliestTimestamp), Sanitize(conversationID))

	count := b.seen[stem]
	b.seen[stem] = count + 1

	if count == 0 {
		return fmt.Sprintf("%s.%s", stem, ext)
	}
	return fmt.Sprintf("%s_%d.%s", stem, count+1, ext)
}
