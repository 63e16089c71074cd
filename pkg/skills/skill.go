// Package skills loads and validates skill directories. A skill is a directory
// containing a SKILL.md file whose YAML frontmatter describes the skill's name,
// description, version and license, followed by free-form instructions.
package skills

import (
	"github.com/jingkaihe/skillpack/pkg/semver"
)

const (
	// FileName is the main instruction file of every skill directory.
	FileName = "SKILL.md"

	// MaxNameLength is the longest accepted skill name.
	MaxNameLength = 40
)

// Descriptor is the validated frontmatter of a SKILL.md file.
type Descriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Version     semver.Version `json:"version" yaml:"version"`
	License     string         `json:"license,omitempty" yaml:"license,omitempty"`

	// VersionSynthesized is set when the file had no version field and
	// semver.Default was assumed. The file must be rewritten to record it.
	VersionSynthesized bool `json:"-" yaml:"-"`

	Path     string `json:"-" yaml:"-"` // skill directory
	FilePath string `json:"-" yaml:"-"` // SKILL.md inside Path
	Raw      []byte `json:"-" yaml:"-"` // file content as read
}

// metadata is the decoded frontmatter before validation
type metadata struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	License     string `mapstructure:"license"`
}
