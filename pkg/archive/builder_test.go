package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newSkillDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pdf-tools")
	writeTree(t, dir, map[string]string{
		"SKILL.md":                      "---\nname: pdf-tools\ndescription: PDFs\nversion: 1.0.0\n---\n",
		"scripts/extract.py":            "print('hi')\n",
		"scripts/__pycache__/x.cpython": "bytecode",
		"scripts/extract.pyc":           "bytecode",
		"references/guide.md":           "# Guide\n",
		".DS_Store":                     "junk",
		".git/HEAD":                     "ref: refs/heads/main\n",
		"assets/logo.svg":               "<svg/>",
		"assets/notes.md~":              "backup",
		"templates/.gitignore":          "*.tmp\n",
		"templates/report.md":           "report",
	})
	return dir
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func TestBuildIncludesOnlyNonExcludedFiles(t *testing.T) {
	dir := newSkillDir(t)
	b, err := NewBuilder()
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := b.Build(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", Version: semver.MustParse("1.0.0")}, &buf)
	require.NoError(t, err)

	entries := readZip(t, buf.Bytes())
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{
		"pdf-tools/SKILL.md",
		"pdf-tools/assets/logo.svg",
		"pdf-tools/references/guide.md",
		"pdf-tools/scripts/extract.py",
		"pdf-tools/templates/report.md",
	}, names)

	require.Len(t, result.Entries, 5)
	assert.Equal(t, "SKILL.md", result.Entries[0].Path)
	assert.Equal(t, "templates/report.md", result.Entries[4].Path)
	assert.Equal(t, int64(buf.Len()), result.Size)
	assert.Len(t, result.SHA256, 64)

	var total int64
	for _, e := range result.Entries {
		total += e.Size
	}
	assert.Equal(t, total, result.TotalBytes)
}

func TestBuildIsDeterministic(t *testing.T) {
	dir := newSkillDir(t)
	b, err := NewBuilder()
	require.NoError(t, err)
	req := Request{SkillDir: dir, Name: "pdf-tools", Version: semver.MustParse("1.0.0")}

	var first bytes.Buffer
	r1, err := b.Build(context.Background(), req, &first)
	require.NoError(t, err)

	// touching mtimes must not change the archive
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "SKILL.md"), later, later))

	var second bytes.Buffer
	r2, err := b.Build(context.Background(), req, &second)
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
	assert.Equal(t, r1.SHA256, r2.SHA256)
}

func TestBuildOverrides(t *testing.T) {
	dir := newSkillDir(t)
	b, err := NewBuilder()
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = b.Build(context.Background(), Request{
		SkillDir:  dir,
		Name:      "pdf-tools",
		Version:   semver.MustParse("1.1.0"),
		Overrides: map[string][]byte{"SKILL.md": []byte("overridden")},
	}, &buf)
	require.NoError(t, err)

	assert.Equal(t, "overridden", readZip(t, buf.Bytes())["pdf-tools/SKILL.md"])

	onDisk, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "version: 1.0.0")
}

func TestBuildPreservesExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no execute bits on windows")
	}
	dir := newSkillDir(t)
	require.NoError(t, os.Chmod(filepath.Join(dir, "scripts", "extract.py"), 0o700))

	b, err := NewBuilder()
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = b.Build(context.Background(), Request{SkillDir: dir, Name: "pdf-tools"}, &buf)
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	modes := map[string]os.FileMode{}
	for _, f := range r.File {
		modes[f.Name] = f.Mode().Perm()
	}
	assert.Equal(t, os.FileMode(0o755), modes["pdf-tools/scripts/extract.py"])
	assert.Equal(t, os.FileMode(0o644), modes["pdf-tools/SKILL.md"])
}

func TestBuildCustomExcludes(t *testing.T) {
	dir := newSkillDir(t)
	b, err := NewBuilder(WithExcludes("references/**", "*.svg"))
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := b.Build(context.Background(), Request{SkillDir: dir, Name: "pdf-tools"}, &buf)
	require.NoError(t, err)

	paths := make([]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"SKILL.md", "scripts/extract.py", "templates/report.md"}, paths)
}

func TestStageAndCommit(t *testing.T) {
	dir := newSkillDir(t)
	out := filepath.Join(t.TempDir(), "dist", "nested")
	b, err := NewBuilder()
	require.NoError(t, err)

	req := Request{SkillDir: dir, Name: "pdf-tools", Version: semver.MustParse("1.0.0"), OutputDir: out}
	staged, err := b.Stage(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "pdf-tools-v1.0.0.zip"), staged.FinalPath)
	_, err = os.Stat(staged.FinalPath)
	assert.True(t, os.IsNotExist(err), "archive must not be visible before commit")

	require.NoError(t, staged.Commit())
	sum, err := Checksum(staged.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, staged.SHA256, sum)

	info, err := os.Stat(staged.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, staged.Size, info.Size())

	dup := CheckDuplicate(out, "pdf-tools", semver.MustParse("1.0.0"))
	var duplicate *DuplicateVersionError
	require.True(t, errors.As(dup, &duplicate))
	assert.Equal(t, staged.FinalPath, duplicate.Path)
	assert.Equal(t, "DuplicateVersionError", duplicate.Kind())

	assert.NoError(t, CheckDuplicate(out, "pdf-tools", semver.MustParse("1.0.1")))
}

func TestStageDiscardLeavesNothing(t *testing.T) {
	dir := newSkillDir(t)
	out := t.TempDir()
	b, err := NewBuilder()
	require.NoError(t, err)

	staged, err := b.Stage(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", OutputDir: out})
	require.NoError(t, err)
	require.NoError(t, staged.Discard())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageOutputPathErrors(t *testing.T) {
	dir := newSkillDir(t)
	b, err := NewBuilder()
	require.NoError(t, err)

	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))

	_, err = b.Stage(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", OutputDir: filepath.Join(notADir, "dist")})
	var outErr *OutputPathError
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, "OutputPathError", outErr.Kind())

	_, err = b.Stage(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", OutputDir: dir})
	require.True(t, errors.As(err, &outErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestOutputDirInsideSkillIsSkipped(t *testing.T) {
	dir := newSkillDir(t)
	out := filepath.Join(dir, "dist")
	writeTree(t, out, map[string]string{"pdf-tools-v0.9.0.zip": "old archive"})

	b, err := NewBuilder()
	require.NoError(t, err)
	staged, err := b.Stage(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", Version: semver.MustParse("1.0.0"), OutputDir: out})
	require.NoError(t, err)
	defer staged.Discard()

	for _, e := range staged.Entries {
		assert.NotContains(t, e.Path, "dist/")
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "pdf-tools-v0.2.0.zip", FileName("pdf-tools", semver.MustParse("0.2.0")))
}

func TestVerify(t *testing.T) {
	dir := newSkillDir(t)
	out := t.TempDir()
	b, err := NewBuilder()
	require.NoError(t, err)

	staged, err := b.Stage(context.Background(), Request{SkillDir: dir, Name: "pdf-tools", Version: semver.MustParse("1.0.0"), OutputDir: out})
	require.NoError(t, err)
	require.NoError(t, staged.Commit())

	sum, err := Verify(staged.FinalPath, strings.ToUpper(staged.SHA256))
	require.NoError(t, err)
	assert.Equal(t, staged.SHA256, sum)

	_, err = Verify(staged.FinalPath, strings.Repeat("0", 64))
	var mismatch *ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, staged.SHA256, mismatch.Actual)
	assert.Equal(t, "ChecksumMismatchError", mismatch.Kind())

	_, err = Verify(filepath.Join(out, "missing.zip"), staged.SHA256)
	assert.Error(t, err)
}

func TestBuildRelativeSkillDirUsesDirectoryName(t *testing.T) {
	dir := newSkillDir(t)
	t.Chdir(dir)

	b, err := NewBuilder()
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = b.Build(context.Background(), Request{SkillDir: ".", Name: "pdf-tools"}, &buf)
	require.NoError(t, err)

	assert.Contains(t, readZip(t, buf.Bytes()), "pdf-tools/SKILL.md")
}
