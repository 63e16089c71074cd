package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeSkill(t, filepath.Join(t.TempDir(), "pdf-tools"), `---
name: pdf-tools
description: Extract text and tables from PDF files
version: 1.2.3
license: MIT
---

# PDF Tools

Use this skill when working with PDFs.
`)

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pdf-tools", d.Name)
	assert.Equal(t, "Extract text and tables from PDF files", d.Description)
	assert.Equal(t, "MIT", d.License)
	assert.Equal(t, semver.MustParse("1.2.3"), d.Version)
	assert.False(t, d.VersionSynthesized)
	assert.Equal(t, dir, d.Path)
	assert.Equal(t, filepath.Join(dir, FileName), d.FilePath)
	assert.Contains(t, string(d.Raw), "# PDF Tools")
}

func TestLoadMissingVersionSynthesizesDefault(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), `---
name: no-version
description: A skill without a version
---
body
`)

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, semver.Default, d.Version)
	assert.Equal(t, "0.1.0", d.Version.String())
	assert.True(t, d.VersionSynthesized)
	assert.True(t, d.NeedsRewrite(semver.Default))
}

func TestLoadQuotedAndCommentedVersion(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), `---
name: quoted
description: Quoted version
version: "2.0.1" # released
---
`)

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", d.Version.String())
	assert.False(t, d.NeedsRewrite(semver.MustParse("2.0.1")))
	assert.True(t, d.NeedsRewrite(semver.MustParse("2.0.2")))
}

func TestLoadQuotedVersionKey(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), `---
name: quoted-key
description: Version under a quoted key
"version": 3.0.0
---
`)

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", d.Version.String())
	assert.False(t, d.VersionSynthesized)

	next, warning, err := semver.Resolve(d.Version, semver.Action{Kind: semver.ActionMinor})
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.Equal(t, "3.1.0", next.String())

	out, err := d.WithVersion(next)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "version"))
	assert.Contains(t, string(out), "\"version\": 3.1.0\n")
}

func TestLoadNullVersionSynthesizesDefault(t *testing.T) {
	for _, value := range []string{"", "~", "null", "Null # unset"} {
		t.Run("version: "+value, func(t *testing.T) {
			dir := writeSkill(t, t.TempDir(), "---\nname: nil-version\ndescription: Null version\nversion: "+value+"\n---\n")

			d, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, semver.Default, d.Version)
			assert.True(t, d.VersionSynthesized)

			out, err := d.WithVersion(semver.MustParse("0.2.0"))
			require.NoError(t, err)
			assert.Equal(t, 1, strings.Count(string(out), "version:"))
			assert.Contains(t, string(out), "version: 0.2.0")
		})
	}
}

func TestLoadQuotedNullIsInvalid(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), "---\nname: x\ndescription: y\nversion: \"null\"\n---\n")

	_, err := Load(dir)
	var invalid *semver.InvalidVersionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "null", invalid.Value)
}

func TestLoadFoldedDescription(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), `---
name: folded
description: >
  A long description that
  spans two lines
---
`)

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "A long description that spans two lines", d.Description)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no opening delimiter",
			content: "name: x\ndescription: y\n",
			kind:    "MalformedMetadataError",
		},
		{
			name:    "no closing delimiter",
			content: "---\nname: x\ndescription: y\n",
			kind:    "MalformedMetadataError",
		},
		{
			name:    "lone delimiter",
			content: "---",
			kind:    "MalformedMetadataError",
		},
		{
			name:    "invalid yaml",
			content: "---\nname: [unterminated\ndescription: y\n---\n",
			kind:    "MalformedMetadataError",
		},
		{
			name:    "missing name",
			content: "---\ndescription: y\n---\n",
			kind:    "MissingFieldError",
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "name", missing.Field)
			},
		},
		{
			name:    "blank description",
			content: "---\nname: x\ndescription: \"  \"\n---\n",
			kind:    "MissingFieldError",
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "description", missing.Field)
			},
		},
		{
			name:    "uppercase name",
			content: "---\nname: My-Skill\ndescription: y\n---\n",
			kind:    "InvalidNameError",
		},
		{
			name:    "leading hyphen",
			content: "---\nname: -skill\ndescription: y\n---\n",
			kind:    "InvalidNameError",
		},
		{
			name:    "double hyphen",
			content: "---\nname: my--skill\ndescription: y\n---\n",
			kind:    "InvalidNameError",
		},
		{
			name:    "name with underscore",
			content: "---\nname: my_skill\ndescription: y\n---\n",
			kind:    "InvalidNameError",
		},
		{
			name:    "script tag in description",
			content: "---\nname: x\ndescription: runs <script> tags\n---\n",
			kind:    "InvalidDescriptionError",
		},
		{
			name:    "closing angle bracket",
			content: "---\nname: x\ndescription: a -> b\n---\n",
			kind:    "InvalidDescriptionError",
		},
		{
			name:    "malformed version",
			content: "---\nname: x\ndescription: y\nversion: 1.0\n---\n",
			kind:    "InvalidVersionError",
			check: func(t *testing.T, err error) {
				var invalid *semver.InvalidVersionError
				require.True(t, errors.As(err, &invalid))
				assert.Equal(t, "1.0", invalid.Value)
				assert.NotEmpty(t, invalid.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSkill(t, t.TempDir(), tt.content)
			_, err := Load(dir)
			require.Error(t, err)

			var kinded interface{ Kind() string }
			require.True(t, errors.As(err, &kinded), "error %T has no kind", err)
			assert.Equal(t, tt.kind, kinded.Kind())
			assert.Contains(t, err.Error(), dir)

			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)

	var missing *MissingFileError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, filepath.Join(dir, FileName), missing.Path)
	assert.Equal(t, "MissingFileError", missing.Kind())
}

func TestNameLengthBoundary(t *testing.T) {
	exact := strings.Repeat("a", MaxNameLength)
	tooLong := strings.Repeat("a", MaxNameLength+1)

	_, err := Parse("SKILL.md", []byte("---\nname: "+exact+"\ndescription: ok\n---\n"))
	assert.NoError(t, err)

	_, err = Parse("SKILL.md", []byte("---\nname: "+tooLong+"\ndescription: ok\n---\n"))
	var invalid *InvalidNameError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, tooLong, invalid.Name)
}
