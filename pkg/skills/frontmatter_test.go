package skills

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionReplacesExistingLine(t *testing.T) {
	raw := `---
name: my-skill
description: Does things
version: 1.0.0
license: Apache-2.0
---

# My Skill

version: 9.9.9 appears in the body and must not change.
`
	out, err := SetVersion([]byte(raw), semver.MustParse("1.1.0"))
	require.NoError(t, err)

	expected := strings.Replace(raw, "version: 1.0.0", "version: 1.1.0", 1)
	assert.Equal(t, expected, string(out))
}

func TestSetVersionInsertsBeforeClosingDelimiter(t *testing.T) {
	raw := "---\nname: my-skill\ndescription: Does things\n---\nbody\n"
	out, err := SetVersion([]byte(raw), semver.MustParse("0.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "---\nname: my-skill\ndescription: Does things\nversion: 0.1.0\n---\nbody\n", string(out))
}

func TestSetVersionPreservesCRLF(t *testing.T) {
	raw := "---\r\nname: my-skill\r\ndescription: Does things\r\nversion: 1.0.0\r\n---\r\nbody\r\n"
	out, err := SetVersion([]byte(raw), semver.MustParse("2.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "---\r\nname: my-skill\r\ndescription: Does things\r\nversion: 2.0.0\r\n---\r\nbody\r\n", string(out))

	raw = "---\r\nname: my-skill\r\ndescription: Does things\r\n---\r\n"
	out, err = SetVersion([]byte(raw), semver.MustParse("0.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "---\r\nname: my-skill\r\ndescription: Does things\r\nversion: 0.1.0\r\n---\r\n", string(out))
}

func TestSetVersionKeepsQuotesAndComments(t *testing.T) {
	raw := "---\nname: a\ndescription: b\nversion: '1.0.0' # pinned\n---\n"
	out, err := SetVersion([]byte(raw), semver.MustParse("1.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "---\nname: a\ndescription: b\nversion: '1.0.1' # pinned\n---\n", string(out))
}

func TestSetVersionQuotedKey(t *testing.T) {
	raw := "---\nname: a\ndescription: b\n'version' : \"1.0.0\" # pinned\n---\n"
	out, err := SetVersion([]byte(raw), semver.MustParse("1.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "---\nname: a\ndescription: b\n'version' : \"1.0.1\" # pinned\n---\n", string(out))
}

func TestTopLevelField(t *testing.T) {
	tests := []struct {
		line  string
		idx   int
		value string
	}{
		{line: "version: 1.0.0", idx: 0, value: "1.0.0"},
		{line: `"version": 1.0.0`, idx: 0, value: "1.0.0"},
		{line: "'version' :  '1.0.0' # x", idx: 0, value: "1.0.0"},
		{line: "version:", idx: 0, value: ""},
		{line: "  version: 1.0.0", idx: -1},
		{line: "# version: 1.0.0", idx: -1},
		{line: "versions: 1.0.0", idx: -1},
		{line: "version:1.0.0", idx: -1},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			idx, value := topLevelField([]string{tt.line}, "version")
			assert.Equal(t, tt.idx, idx)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestSetVersionEmptyFrontmatter(t *testing.T) {
	out, err := SetVersion([]byte("---\n---\n"), semver.MustParse("0.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "---\nversion: 0.1.0\n---\n", string(out))
}

func TestSetVersionMalformed(t *testing.T) {
	_, err := SetVersion([]byte("no frontmatter"), semver.Default)
	assert.Error(t, err)

	_, err = SetVersion([]byte("---\nname: a\n"), semver.Default)
	assert.Error(t, err)
}

func TestDescriptorRoundTrip(t *testing.T) {
	raw := []byte(`---
name: round-trip
description: Survives a rewrite
license: MIT
---

Body text.
`)
	before, err := Parse("SKILL.md", raw)
	require.NoError(t, err)

	for _, v := range []string{"0.1.0", "0.2.0", "3.4.5"} {
		rewritten, err := before.WithVersion(semver.MustParse(v))
		require.NoError(t, err)

		after, err := Parse("SKILL.md", rewritten)
		require.NoError(t, err)

		assert.Equal(t, v, after.Version.String())
		assert.False(t, after.VersionSynthesized)
		diff := cmp.Diff(before, after, cmpopts.IgnoreFields(Descriptor{}, "Version", "VersionSynthesized", "Raw"))
		assert.Empty(t, diff)
		assert.True(t, strings.HasSuffix(string(rewritten), "---\n\nBody text.\n"))
	}
}

func TestLocateFrontmatter(t *testing.T) {
	raw := []byte("---\na: 1\n---\nrest")
	start, end, err := locateFrontmatter(raw)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(raw[start:end]))

	raw = []byte("---  \na: 1\n---\t\n")
	start, end, err = locateFrontmatter(raw)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(raw[start:end]))

	_, _, err = locateFrontmatter([]byte("# title\n---\n"))
	assert.ErrorIs(t, err, errMissingOpening)

	_, _, err = locateFrontmatter([]byte("---\na: 1\n"))
	assert.ErrorIs(t, err, errMissingClosing)
}
