package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_AllRolesSucceed(t *testing.T) {
	set := NewSet()
	vars := map[string]string{
		"companion_name":      "Aria",
		"conversation_id":     "conv-1",
		"transcript":          "[user] hi\n[assistant] hello",
		"observation_packets": "[]",
		"candidate_memories":  "[]",
		"max_memories":        "50",
	}

	for _, role := range AllRoles {
		rendered, err := set.Render(role, vars)
		require.NoError(t, err, "role %s", role)
		require.NotEmpty(t, rendered, "role %s", role)
	}
}

func TestRender_PreservesDoubleBraceTokens(t *testing.T) {
	set := NewSet()
	vars := map[string]string{
		"companion_name": "Aria",
		"user":           "SHOULD_NOT_APPEAR",
		"char":           "SHOULD_NOT_APPEAR",
	}

	rendered, err := set.Render(PersonaSynthesisUser, vars)
	require.NoError(t, err)

	require.Contains(t, rendered, "{{user}}")
	require.Contains(t, rendered, "{{char}}")
	require.NotContains(t, rendered, "SHOULD_NOT_APPEAR")
}

func TestRender_SubstitutesSingleBracePlaceholders(t *testing.T) {
	set := NewSet()
	rendered, err := set.Render(MemoryUser, map[string]string{
		"companion_name":  "Aria",
		"conversation_id": "conv-42",
		"transcript":      "hello world",
	})
	require.NoError(t, err)
	require.Contains(t, rendered, "conv-42")
	require.Contains(t, rendered, "hello world")
	require.NotContains(t, rendered, "{conversation_id}")
	require.NotContains(t, rendered, "{transcript}")
}

func TestRender_UnknownRoleErrors(t *testing.T) {
	set := NewSet()
	_, err := set.Render(Role("not-a-role"), nil)
	require.Error(t, err)
}

func TestLoadOverrides_ReplacesMatchingRoleOnly(t *testing.T) {
	dir := t.TempDir()
	overrideBody := "Custom persona system prompt referencing {{char}} and {{user}}."
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(PersonaObservationSystem)+".txt"), []byte(overrideBody), 0o644))

	set := NewSet()
	defaultMemoryBody := set.bodies[MemorySystem]

	require.NoError(t, set.LoadOverrides(dir))

	rendered, err := set.Render(PersonaObservationSystem, nil)
	require.NoError(t, err)
	require.Equal(t, overrideBody, rendered)

	require.Equal(t, defaultMemoryBody, set.bodies[MemorySystem], "role without an override file should keep its default body")
}

func TestLoadOverrides_MissingDirIsNoOp(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.LoadOverrides(filepath.Join(t.TempDir(), "does-not-exist")))
}
