package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// singleBracePlaceholder matches {name} placeholders, deliberately excluding
// any brace that is part of a {{...}} pair (those are pre-masked before this
// runs).
var singleBracePlaceholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

const (
	sentinelUser = "\x00DOUBLEBRACE_USER\x00"
	sentinelChar = "\x00DOUBLEBRACE_CHAR\x00"
)

// Set holds the rendered template bodies for all eight roles, with any
// overrides loaded from disk taking precedence over the built-in defaults.
type Set struct {
	bodies map[Role]string
}

// NewSet builds a Set from the built-in default templates.
func NewSet() *Set {
	bodies := make(map[Role]string, len(defaultTemplates))
	for role, body := range defaultTemplates {
		bodies[role] = body
	}
	return &Set{bodies: bodies}
}

// LoadOverrides reads "<role>.txt" files from dir and substitutes them for
// the corresponding default template body. Missing files are left at their
// default; dir itself is not required to exist.
func (s *Set) LoadOverrides(dir string) error {
	if dir == "" {
		return nil
	}
	for _, role := range AllRoles {
		path := filepath.Join(dir, string(role)+".txt")
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("loading prompt override for %s: %w", role, err)
		}
		s.bodies[role] = string(content)
	}
	return nil
}

// ApplyOverrides replaces bodies for any role present (by its string name)
// in overrides, leaving roles absent from the map at their current body.
// This is how a per-run GenerationRequest.PromptOverrides map takes
// precedence over both the built-ins and any directory-loaded overrides.
func (s *Set) ApplyOverrides(overrides map[string]string) {
	for _, role := range AllRoles {
		if body, ok := overrides[string(role)]; ok && body != "" {
			s.bodies[role] = body
		}
	}
}

// Render substitutes single-brace placeholders in the named role's template
// with the given variables, leaving {{user}}/{{char}} tokens untouched
// regardless of the variable set passed in (§4.6.4, property #14).
func (s *Set) Render(role Role, vars map[string]string) (string, error) {
	body, ok := s.bodies[role]
	if !ok {
		return "", fmt.Errorf("no template registered for role %q", role)
	}

	masked := maskDoubleBraceTokens(body)

	substituted := singleBracePlaceholder.ReplaceAllStringFunc(masked, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})

	return unmaskDoubleBraceTokens(substituted), nil
}

func maskDoubleBraceTokens(s string) string {
	s = strings.ReplaceAll(s, "{{user}}", sentinelUser)
	s = strings.ReplaceAll(s, "{{char}}", sentinelChar)
	return s
}

func unmaskDoubleBraceTokens(s string) string {
	s = strings.ReplaceAll(s, sentinelUser, "{{user}}")
	s = strings.ReplaceAll(s, sentinelChar, "{{char}}")
	return s
}
