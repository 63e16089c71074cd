// Package packager runs the skill packaging pipeline: validate the
// descriptor, resolve the next version, render the download and user guides,
// build the archive and record the new version in SKILL.md.
//
// Every output is staged beside its destination and only renamed into place
// once all stages have succeeded, so a failed run leaves no partial files.
package packager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillpack/pkg/archive"
	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/osutil"
	"github.com/jingkaihe/skillpack/pkg/render"
	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/jingkaihe/skillpack/pkg/skills"
	"github.com/jingkaihe/skillpack/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultWarnSize is the archive size above which a warning is reported.
const DefaultWarnSize int64 = 10 * 1024 * 1024

// RegressionHook decides whether a version regression may proceed.
type RegressionHook func(*semver.VersionRegressionWarning) bool

// OverwriteHook decides whether an existing archive may be replaced.
type OverwriteHook func(*archive.DuplicateVersionError) bool

// Packager runs packaging requests with a fixed configuration.
type Packager struct {
	templatesDir      string
	strict            bool
	excludes          []string
	warnSize          int64
	now               func() time.Time
	confirmRegression RegressionHook
	confirmOverwrite  OverwriteHook
	builder           *archive.Builder
}

// Option configures a Packager
type Option func(*Packager) error

// WithTemplatesDir loads templates from dir instead of the embedded ones.
func WithTemplatesDir(dir string) Option {
	return func(p *Packager) error {
		p.templatesDir = dir
		return nil
	}
}

// WithStrictTemplates fails rendering on unresolved placeholders.
func WithStrictTemplates(strict bool) Option {
	return func(p *Packager) error {
		p.strict = strict
		return nil
	}
}

// WithExcludes adds archive exclusion patterns on top of the defaults.
func WithExcludes(patterns ...string) Option {
	return func(p *Packager) error {
		p.excludes = append(p.excludes, patterns...)
		return nil
	}
}

// WithWarnSize sets the archive size that triggers a warning. Zero or less
// disables the warning.
func WithWarnSize(bytes int64) Option {
	return func(p *Packager) error {
		p.warnSize = bytes
		return nil
	}
}

// WithClock sets the time source used for the installation date.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		p.now = now
		return nil
	}
}

// WithRegressionHook sets the callback consulted when the resolved version is
// lower than the current one. Without a hook regressions are refused.
func WithRegressionHook(hook RegressionHook) Option {
	return func(p *Packager) error {
		p.confirmRegression = hook
		return nil
	}
}

// WithOverwriteHook sets the callback consulted when the archive already
// exists. Without a hook the run is refused.
func WithOverwriteHook(hook OverwriteHook) Option {
	return func(p *Packager) error {
		p.confirmOverwrite = hook
		return nil
	}
}

// New creates a Packager.
func New(opts ...Option) (*Packager, error) {
	p := &Packager{
		warnSize: DefaultWarnSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	builder, err := archive.NewBuilder(archive.WithExcludes(p.excludes...))
	if err != nil {
		return nil, errors.Wrap(err, "invalid exclude pattern")
	}
	p.builder = builder

	return p, nil
}

// Request is a single packaging run.
type Request struct {
	SkillDir  string
	OutputDir string
	Action    semver.Action
	// DryRun runs every stage without writing anything.
	DryRun bool
}

// Doc is a generated document.
type Doc struct {
	Kind     render.DocKind `json:"kind" yaml:"kind"`
	Path     string         `json:"path" yaml:"path"`
	Template string         `json:"template" yaml:"template"`
}

// Artifact describes the outcome of a run.
type Artifact struct {
	RunID           string         `json:"runId" yaml:"runId"`
	Name            string         `json:"name" yaml:"name"`
	PreviousVersion semver.Version `json:"previousVersion" yaml:"previousVersion"`
	Version         semver.Version `json:"version" yaml:"version"`

	ArchivePath   string          `json:"archivePath" yaml:"archivePath"`
	SHA256        string          `json:"sha256" yaml:"sha256"`
	SizeBytes     int64           `json:"sizeBytes" yaml:"sizeBytes"`
	FileCount     int             `json:"fileCount" yaml:"fileCount"`
	TotalBytes    int64           `json:"totalBytes" yaml:"totalBytes"`
	Files         []archive.Entry `json:"files" yaml:"files"`
	GeneratedDocs []Doc           `json:"generatedDocs" yaml:"generatedDocs"`

	DescriptorPath    string `json:"descriptorPath" yaml:"descriptorPath"`
	DescriptorUpdated bool   `json:"descriptorUpdated" yaml:"descriptorUpdated"`
	Overwrote         bool   `json:"overwrote" yaml:"overwrote"`

	DryRun bool `json:"dryRun" yaml:"dryRun"`
	// Diff is the unified diff of SKILL.md, only set on dry runs.
	Diff string `json:"diff,omitempty" yaml:"diff,omitempty"`
	// Warnings are advisory messages the caller should surface.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Run executes the pipeline. The first failing stage's error is returned as
// is, so callers can match it with errors.As.
func (p *Packager) Run(ctx context.Context, req Request) (*Artifact, error) {
	runID := uuid.New().String()
	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": runID, "skill_dir": req.SkillDir})

	var artifact *Artifact
	err := telemetry.WithSpan(ctx, "skillpack.package", func(ctx context.Context) error {
		var err error
		artifact, err = p.run(ctx, req)
		return err
	},
		attribute.String("run_id", runID),
		attribute.String("skill_dir", req.SkillDir),
		attribute.String("action", req.Action.String()),
		attribute.Bool("dry_run", req.DryRun),
	)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("packaging failed")
		return nil, err
	}

	artifact.RunID = runID
	return artifact, nil
}

// stage runs f in its own span.
func stage(ctx context.Context, name string, f func(context.Context) error) error {
	return telemetry.WithSpan(ctx, "skillpack."+name, func(ctx context.Context) error {
		start := time.Now()
		err := f(ctx)
		logger.G(ctx).WithField("stage", name).WithField("elapsed", time.Since(start)).Debug("stage finished")
		return err
	}, attribute.String("stage", name))
}

type renderedDoc struct {
	Doc
	content []byte
}

func (p *Packager) run(ctx context.Context, req Request) (*Artifact, error) {
	if req.OutputDir == "" {
		return nil, &archive.OutputPathError{Path: req.OutputDir, Err: errors.New("no output directory given")}
	}

	var d *skills.Descriptor
	if err := stage(ctx, "validate", func(context.Context) error {
		var err error
		d, err = skills.Load(req.SkillDir)
		return err
	}); err != nil {
		return nil, err
	}
	ctx = logger.WithFields(ctx, logrus.Fields{"skill": d.Name})

	var (
		next      semver.Version
		regressed *semver.VersionRegressionWarning
	)
	if err := stage(ctx, "version", func(ctx context.Context) error {
		v, warning, err := semver.Resolve(d.Version, req.Action)
		if err != nil {
			return err
		}
		if warning != nil {
			if p.confirmRegression == nil || !p.confirmRegression(warning) {
				return warning
			}
			logger.G(ctx).WithField("current", d.Version.String()).WithField("requested", v.String()).Warn("version regression accepted")
			regressed = warning
		}
		next = v
		return nil
	}); err != nil {
		return nil, err
	}
	ctx = logger.WithFields(ctx, logrus.Fields{"version": next.String()})

	artifact := &Artifact{
		Name:            d.Name,
		PreviousVersion: d.Version,
		Version:         next,
		ArchivePath:     filepath.Join(req.OutputDir, archive.FileName(d.Name, next)),
		DescriptorPath:  d.FilePath,
		DryRun:          req.DryRun,
	}
	if d.VersionSynthesized {
		artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("%s has no version, assuming %s", d.FilePath, semver.Default))
	}
	if regressed != nil {
		artifact.Warnings = append(artifact.Warnings, regressed.Error())
	}

	docs, err := p.renderDocs(ctx, d, next, req, artifact)
	if err != nil {
		return nil, err
	}

	if err := stage(ctx, "duplicate", func(ctx context.Context) error {
		dup := archive.CheckDuplicate(req.OutputDir, d.Name, next)
		if dup == nil {
			return nil
		}
		var duplicate *archive.DuplicateVersionError
		if !errors.As(dup, &duplicate) {
			return dup
		}
		if req.DryRun {
			artifact.Warnings = append(artifact.Warnings, duplicate.Error())
			return nil
		}
		if p.confirmOverwrite == nil || !p.confirmOverwrite(duplicate) {
			return duplicate
		}
		logger.G(ctx).WithField("path", artifact.ArchivePath).Warn("overwriting existing archive")
		artifact.Overwrote = true
		return nil
	}); err != nil {
		return nil, err
	}

	descriptor := d.Raw
	if d.NeedsRewrite(next) {
		descriptor, err = d.WithVersion(next)
		if err != nil {
			return nil, err
		}
		artifact.DescriptorUpdated = true
	}

	archiveReq := archive.Request{
		SkillDir:  req.SkillDir,
		Name:      d.Name,
		Version:   next,
		OutputDir: req.OutputDir,
		Overrides: map[string][]byte{skills.FileName: descriptor},
	}

	if req.DryRun {
		return p.dryRun(ctx, d, descriptor, archiveReq, artifact)
	}

	return p.write(ctx, d, descriptor, docs, archiveReq, artifact)
}

func (p *Packager) renderDocs(ctx context.Context, d *skills.Descriptor, next semver.Version, req Request, artifact *Artifact) ([]renderedDoc, error) {
	absSkill, err := filepath.Abs(req.SkillDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", req.SkillDir)
	}
	tokens := render.SkillTokens(d.Name, d.Description, next.String(), d.License,
		filepath.Base(absSkill), archive.FileName(d.Name, next), p.now())

	docs := make([]renderedDoc, 0, len(render.Kinds))
	for _, kind := range render.Kinds {
		if err := stage(ctx, "render", func(ctx context.Context) error {
			telemetry.SetAttributes(ctx, attribute.String("doc", string(kind)))

			tmpl, err := render.Load(p.templatesDir, kind)
			if err != nil {
				return err
			}
			if tmpl.Fallback {
				msg := fmt.Sprintf("%s not found in %s, using the built-in template", kind.TemplateFile(), p.templatesDir)
				logger.G(ctx).Warn(msg)
				artifact.Warnings = append(artifact.Warnings, msg)
			}

			out, err := tmpl.Render(tokens, p.strict)
			if err != nil {
				return err
			}

			doc := Doc{Kind: kind, Path: filepath.Join(req.OutputDir, kind.OutputName(d.Name)), Template: tmpl.Name}
			docs = append(docs, renderedDoc{Doc: doc, content: []byte(out)})
			artifact.GeneratedDocs = append(artifact.GeneratedDocs, doc)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return docs, nil
}

func (p *Packager) dryRun(ctx context.Context, d *skills.Descriptor, descriptor []byte, req archive.Request, artifact *Artifact) (*Artifact, error) {
	var result *archive.Result
	if err := stage(ctx, "archive", func(ctx context.Context) error {
		var err error
		result, err = p.builder.Build(ctx, req, io.Discard)
		return err
	}); err != nil {
		return nil, err
	}

	p.recordArchive(artifact, result)
	if artifact.DescriptorUpdated {
		artifact.Diff = udiff.Unified(d.FilePath, d.FilePath, string(d.Raw), string(descriptor))
	}
	return artifact, nil
}

func (p *Packager) write(ctx context.Context, d *skills.Descriptor, descriptor []byte, docs []renderedDoc, req archive.Request, artifact *Artifact) (*Artifact, error) {
	var staged []*osutil.StagedFile
	discard := func() {
		var result *multierror.Error
		for _, s := range staged {
			if err := s.Discard(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to clean up staged files")
		}
	}

	var result *archive.Result
	if err := stage(ctx, "archive", func(ctx context.Context) error {
		s, err := p.builder.Stage(ctx, req)
		if err != nil {
			return err
		}
		staged = append(staged, s.StagedFile)
		result = s.Result
		return nil
	}); err != nil {
		discard()
		return nil, err
	}
	p.recordArchive(artifact, result)

	if err := stage(ctx, "stage", func(ctx context.Context) error {
		for _, doc := range docs {
			s, err := osutil.WriteStaged(doc.Path, doc.content, 0o644)
			if err != nil {
				return &archive.OutputPathError{Path: req.OutputDir, Err: err}
			}
			staged = append(staged, s)
		}

		if !artifact.DescriptorUpdated {
			return nil
		}
		perm := os.FileMode(0o644)
		if info, err := os.Stat(d.FilePath); err == nil {
			perm = info.Mode().Perm()
		}
		s, err := osutil.WriteStaged(d.FilePath, descriptor, perm)
		if err != nil {
			return err
		}
		staged = append(staged, s)
		return nil
	}); err != nil {
		discard()
		return nil, err
	}

	if err := stage(ctx, "commit", func(ctx context.Context) error {
		for _, s := range staged {
			if err := osutil.CheckDestination(s.FinalPath); err != nil {
				return &archive.OutputPathError{Path: filepath.Dir(s.FinalPath), Err: err}
			}
		}

		for i, s := range staged {
			if err := s.Commit(); err != nil {
				rollback(ctx, staged[:i])
				return &archive.OutputPathError{Path: filepath.Dir(s.FinalPath), Err: err}
			}
			telemetry.AddEvent(ctx, "committed", attribute.String("path", s.FinalPath))
			logger.G(ctx).WithField("path", s.FinalPath).Debug("committed")
		}
		return nil
	}); err != nil {
		discard()
		return nil, err
	}

	var cleanup *multierror.Error
	for _, s := range staged {
		if err := s.Cleanup(); err != nil {
			cleanup = multierror.Append(cleanup, err)
		}
	}
	if err := cleanup.ErrorOrNil(); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to remove backups of replaced files")
	}

	logger.G(ctx).WithField("archive", artifact.ArchivePath).WithField("sha256", artifact.SHA256).Info("skill packaged")
	return artifact, nil
}

// rollback undoes committed files in reverse order so that a failed commit
// leaves the previous outputs in place.
func rollback(ctx context.Context, committed []*osutil.StagedFile) {
	var result *multierror.Error
	for i := len(committed) - 1; i >= 0; i-- {
		if err := committed[i].Rollback(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.G(ctx).WithError(err).Error("failed to roll back committed files")
	}
}

func (p *Packager) recordArchive(artifact *Artifact, result *archive.Result) {
	artifact.SHA256 = result.SHA256
	artifact.SizeBytes = result.Size
	artifact.FileCount = len(result.Entries)
	artifact.TotalBytes = result.TotalBytes
	artifact.Files = result.Entries

	if p.warnSize > 0 && result.Size > p.warnSize {
		artifact.Warnings = append(artifact.Warnings,
			fmt.Sprintf("archive is %s, larger than %s; consider moving large assets out of the skill", humanize.IBytes(uint64(result.Size)), humanize.IBytes(uint64(p.warnSize))))
	}
}
