// Package memory deduplicates and compacts raw memory candidates into the
// final keyed lorebook (§4.6.9).
package memory

import (
	"regexp"
	"sort"
	"strings"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Signature returns the dedup key for a candidate/entry: normalized
// content joined with its lowercased, sorted keys.
func Signature(content string, keys []string) string {
	normalizedContent := normalizeContent(content)
	normalizedKeys := make([]string, len(keys))
	for i, k := range keys {
		normalizedKeys[i] = strings.ToLower(strings.TrimSpace(k))
	}
	sort.Strings(normalizedKeys)
	return normalizedContent + "|" + strings.Join(normalizedKeys, ",")
}

func normalizeContent(content string) string {
	trimmed := strings.TrimSpace(content)
	collapsed := whitespaceRun.ReplaceAllString(trimmed, " ")
	return strings.ToLower(collapsed)
}

// Compact merges duplicate candidates by dedup signature, unioning keys,
// taking the max priority, the longer content, and back-filling empty
// source fields. Compact is idempotent: Compact(Compact(xs)) == Compact(xs).
func Compact(candidates []models.MemoryCandidate) []models.MemoryCandidate {
	order := make([]string, 0, len(candidates))
	bySignature := make(map[string]models.MemoryCandidate, len(candidates))

	for _, c := range candidates {
		sig := Signature(c.Content, c.Keys)
		existing, ok := bySignature[sig]
		if !ok {
			bySignature[sig] = c
			order = append(order, sig)
			continue
		}
		bySignature[sig] = mergeCandidates(existing, c)
	}

	out := make([]models.MemoryCandidate, 0, len(order))
	for _, sig := range order {
		out = append(out, bySignature[sig])
	}
	return out
}

func mergeCandidates(a, b models.MemoryCandidate) models.MemoryCandidate {
	merged := a
	merged.Keys = unionKeys(a.Keys, b.Keys)

	if b.Priority > merged.Priority {
		merged.Priority = b.Priority
	}
	if len(b.Content) > len(merged.Content) {
		merged.Content = b.Content
	}
	if merged.SourceConversation == "" {
		merged.SourceConversation = b.SourceConversation
	}
	if merged.SourceDate == "" {
		merged.SourceDate = b.SourceDate
	}
	if merged.Name == "" {
		merged.Name = b.Name
	}
	if merged.Category == "" {
		merged.Category = b.Category
	}
	return merged
}

func unionKeys(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, k := range append(append([]string{}, a...), b...) {
		lower := strings.ToLower(strings.TrimSpace(k))
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, k)
	}
	return out
}

// ToLorebook shapes compacted candidates into lorebook entries, capping the
// result at maxEntries by descending priority (§4.6.9).
func ToLorebook(candidates []models.MemoryCandidate, maxEntries int) []models.LorebookEntry {
	compacted := Compact(candidates)

	sorted := make([]models.MemoryCandidate, len(compacted))
	copy(sorted, compacted)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	if maxEntries > 0 && len(sorted) > maxEntries {
		sorted = sorted[:maxEntries]
	}

	out := make([]models.LorebookEntry, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, models.LorebookEntry{
			Name:               c.Name,
			Keys:               c.Keys,
			Content:            c.Content,
			Category:           c.Category,
			Priority:           c.Priority,
			SourceConversation: c.SourceConversation,
			SourceDate:         c.SourceDate,
		})
	}
	return out
}

// ExistingMemoriesToCandidates converts previously shaped lorebook entries
// back into candidates for an append-memories run, applying a priority
// decay so freshly extracted memories can compete on equal footing while
// still favoring long-standing entries on ties (§4.6.1).
func ExistingMemoriesToCandidates(entries []models.LorebookEntry, decay int) []models.MemoryCandidate {
	out := make([]models.MemoryCandidate, 0, len(entries))
	for _, e := range entries {
		priority := e.Priority - decay
		if priority < 0 {
			priority = 0
		}
		out = append(out, models.MemoryCandidate{
			Name:               e.Name,
			Keys:               e.Keys,
			Content:            e.Content,
			Category:           e.Category,
			Priority:           priority,
			SourceConversation: e.SourceConversation,
			SourceDate:         e.SourceDate,
		})
	}
	return out
}
