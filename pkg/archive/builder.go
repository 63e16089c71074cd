// Package archive builds the distributable zip of a skill directory. Archives
// are reproducible: the same directory content always yields the same bytes
// and therefore the same SHA-256.
package archive

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/osutil"
	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/pkg/errors"
)

// Extension of produced archives.
const Extension = ".zip"

// entryTime is stamped on every entry so archives do not depend on mtimes.
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// FileName returns the archive file name for a skill version.
func FileName(name string, v semver.Version) string {
	return fmt.Sprintf("%s-v%s%s", name, v, Extension)
}

// Request describes one archive to build.
type Request struct {
	SkillDir  string
	Name      string
	Version   semver.Version
	OutputDir string
	// Overrides replaces the content of files (keyed by slash-separated path
	// relative to SkillDir) without touching the files on disk.
	Overrides map[string][]byte
}

// Path returns the final archive path for the request.
func (r Request) Path() string {
	return filepath.Join(r.OutputDir, FileName(r.Name, r.Version))
}

// Entry is one file stored in the archive.
type Entry struct {
	Path string `json:"path" yaml:"path"` // relative to the skill directory
	Size int64  `json:"size" yaml:"size"`
}

// Result describes a built archive.
type Result struct {
	Entries    []Entry
	TotalBytes int64 // uncompressed
	Size       int64 // archive bytes
	SHA256     string
}

// Staged is an archive written to a temporary path awaiting Commit.
type Staged struct {
	*Result
	*osutil.StagedFile
}

// Builder produces skill archives.
type Builder struct {
	excluder *Excluder
}

// Option configures a Builder
type Option func(*Builder) error

// WithExcludes adds exclusion patterns on top of DefaultExcludes.
func WithExcludes(patterns ...string) Option {
	return func(b *Builder) error {
		all := append(append([]string{}, DefaultExcludes...), patterns...)
		e, err := NewExcluder(all...)
		if err != nil {
			return err
		}
		b.excluder = e
		return nil
	}
}

// NewBuilder creates a Builder using DefaultExcludes unless options say otherwise.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{}
	if err := WithExcludes()(b); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type sourceFile struct {
	rel  string
	abs  string
	mode os.FileMode
}

// collect walks the skill directory and returns included files sorted by
// relative path. An output directory nested inside the skill directory is
// always skipped.
func (b *Builder) collect(skillDir, outputDir string) ([]sourceFile, error) {
	skipRel := ""
	if outputDir != "" {
		absSkill, err1 := filepath.Abs(skillDir)
		absOut, err2 := filepath.Abs(outputDir)
		if err1 == nil && err2 == nil {
			rel, err := filepath.Rel(absSkill, absOut)
			if err == nil && rel == "." {
				return nil, &OutputPathError{Path: outputDir, Err: errors.New("must not be the skill directory itself")}
			}
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				skipRel = filepath.ToSlash(rel)
			}
		}
	}

	var files []sourceFile
	err := filepath.WalkDir(skillDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(skillDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if rel == skipRel || b.excluder.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if b.excluder.Excluded(rel) {
			return nil
		}

		// follows symlinks; symlinked directories are not descended into
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		files = append(files, sourceFile{rel: rel, abs: path, mode: info.Mode()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", skillDir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}

// Build writes the archive for req to w and reports its digest.
func (b *Builder) Build(ctx context.Context, req Request, w io.Writer) (*Result, error) {
	files, err := b.collect(req.SkillDir, req.OutputDir)
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(w, hasher, counter))

	absSkill, err := filepath.Abs(req.SkillDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", req.SkillDir)
	}
	prefix := filepath.Base(absSkill)
	result := &Result{Entries: make([]Entry, 0, len(files))}

	for _, f := range files {
		n, err := writeEntry(zw, prefix+"/"+f.rel, f, req.Overrides)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to add %s", f.rel)
		}
		result.Entries = append(result.Entries, Entry{Path: f.rel, Size: n})
		result.TotalBytes += n
		logger.G(ctx).WithField("path", f.rel).WithField("bytes", n).Debug("added to archive")
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize archive")
	}

	result.Size = counter.n
	result.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	return result, nil
}

func writeEntry(zw *zip.Writer, name string, f sourceFile, overrides map[string][]byte) (int64, error) {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	if f.mode&0o111 != 0 {
		header.SetMode(0o755)
	} else {
		header.SetMode(0o644)
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}

	if content, ok := overrides[f.rel]; ok {
		n, err := w.Write(content)
		return int64(n), err
	}

	src, err := os.Open(f.abs)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return io.Copy(w, src)
}

// Stage builds the archive into a temporary file inside req.OutputDir. The
// archive only appears at req.Path() once the returned value is committed.
func (b *Builder) Stage(ctx context.Context, req Request) (*Staged, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, &OutputPathError{Path: req.OutputDir, Err: err}
	}

	f, staged, err := osutil.CreateStaged(req.Path(), 0o644)
	if err != nil {
		return nil, &OutputPathError{Path: req.OutputDir, Err: err}
	}

	result, err := b.Build(ctx, req, f)
	if err != nil {
		f.Close()
		staged.Discard()
		return nil, err
	}
	if err := f.Close(); err != nil {
		staged.Discard()
		return nil, &OutputPathError{Path: req.OutputDir, Err: err}
	}

	return &Staged{Result: result, StagedFile: staged}, nil
}

// CheckDuplicate returns a *DuplicateVersionError when the archive for
// name and version already exists in outputDir.
func CheckDuplicate(outputDir, name string, v semver.Version) error {
	path := filepath.Join(outputDir, FileName(name, v))
	if osutil.FileExists(path) {
		return &DuplicateVersionError{Path: path, Name: name, Version: v}
	}
	return nil
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify recomputes the digest of the archive at path and compares it with
// expected, ignoring case.
func Verify(path, expected string) (string, error) {
	actual, err := Checksum(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to checksum %s", path)
	}
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return actual, &ChecksumMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return actual, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
