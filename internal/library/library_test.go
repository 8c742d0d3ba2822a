package library

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_FindsBuiltinSkill(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	require.Contains(t, cat.Names(), "frontmatter-version")
	require.True(t, cat.Has("frontmatter-version"))

	files := cat.Files("frontmatter-version")
	require.Contains(t, files, "SKILL.md")
	require.Contains(t, files, "scripts/get_version.py")
	require.Contains(t, string(files["SKILL.md"]), "name: frontmatter-version")
}

func TestLoad_UnknownSkillReturnsNil(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.False(t, cat.Has("does-not-exist"))
	require.Nil(t, cat.Files("does-not-exist"))
}

func TestFiles_ReturnsIndependentCopy(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	files := cat.Files("frontmatter-version")
	files["SKILL.md"] = []byte("mutated")

	again := cat.Files("frontmatter-version")
	require.NotEqual(t, "mutated", string(again["SKILL.md"]))
}
