package skills

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Load reads and validates the SKILL.md of the given skill directory.
func Load(dir string) (*Descriptor, error) {
	path := filepath.Join(dir, FileName)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingFileError{Path: path}
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	d, err := Parse(path, content)
	if err != nil {
		return nil, err
	}
	d.Path = dir
	return d, nil
}

// Parse validates SKILL.md content. path is only used for error reporting and
// is recorded as the descriptor's FilePath.
func Parse(path string, content []byte) (*Descriptor, error) {
	start, end, err := locateFrontmatter(content)
	if err != nil {
		return nil, &MalformedMetadataError{Path: path, Reason: err.Error()}
	}

	values, err := decodeFrontmatter(content)
	if err != nil {
		return nil, &MalformedMetadataError{Path: path, Reason: err.Error()}
	}

	var md metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &md,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metadata decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return nil, &MalformedMetadataError{Path: path, Reason: err.Error()}
	}

	d := &Descriptor{
		Name:        strings.TrimSpace(md.Name),
		Description: strings.TrimSpace(md.Description),
		License:     strings.TrimSpace(md.License),
		FilePath:    path,
		Raw:         content,
	}

	if err := d.validate(); err != nil {
		return nil, err
	}

	// Presence follows the decoded YAML, so an empty value or null counts as
	// absent. The value itself comes from the raw line so that 1.0 is not read
	// as a number.
	if values["version"] == nil {
		d.Version = semver.Default
		d.VersionSynthesized = true
		return d, nil
	}

	lines := strings.Split(string(content[start:end]), "\n")
	idx, raw := topLevelField(lines, "version")
	if idx < 0 {
		return nil, &MalformedMetadataError{Path: path, Reason: "version must be written as a single top-level version: line"}
	}
	v, err := semver.Parse(raw)
	if err != nil {
		return nil, &semver.InvalidVersionError{Value: raw, Path: path}
	}
	d.Version = v

	return d, nil
}

// decodeFrontmatter runs the markdown parser with the meta extension and
// returns the decoded YAML block.
func decodeFrontmatter(content []byte) (map[string]interface{}, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	pctx := parser.NewContext()
	md.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	values, err := meta.TryGet(pctx)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return values, nil
}

func (d *Descriptor) validate() error {
	if d.Name == "" {
		return &MissingFieldError{Path: d.FilePath, Field: "name"}
	}
	if d.Description == "" {
		return &MissingFieldError{Path: d.FilePath, Field: "description"}
	}

	if len(d.Name) > MaxNameLength {
		return &InvalidNameError{
			Path:   d.FilePath,
			Name:   d.Name,
			Reason: "must be at most 40 characters",
		}
	}
	if !namePattern.MatchString(d.Name) {
		return &InvalidNameError{
			Path:   d.FilePath,
			Name:   d.Name,
			Reason: "must be lowercase letters, digits and single hyphens, not starting or ending with a hyphen",
		}
	}

	if strings.ContainsAny(d.Description, "<>") {
		return &InvalidDescriptionError{Path: d.FilePath, Description: d.Description}
	}

	return nil
}

// WithVersion returns the SKILL.md content with its version set to v. The
// descriptor itself is not modified.
func (d *Descriptor) WithVersion(v semver.Version) ([]byte, error) {
	out, err := SetVersion(d.Raw, v)
	if err != nil {
		return nil, &MalformedMetadataError{Path: d.FilePath, Reason: err.Error()}
	}
	return out, nil
}

// NeedsRewrite reports whether writing version v requires changing the file.
func (d *Descriptor) NeedsRewrite(v semver.Version) bool {
	return d.VersionSynthesized || d.Version != v
}
