package render

import (
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Embedded generic templates used when no templates directory is configured
// or it lacks a file.
var (
	//go:embed templates/download_template.md
	downloadTemplate string

	//go:embed templates/doc_template.md
	docTemplate string
)

// DocKind identifies one of the two generated documents.
type DocKind string

const (
	// DownloadDoc is the installation guide.
	DownloadDoc DocKind = "download"
	// UserDoc is the user guide.
	UserDoc DocKind = "doc"
)

// Kinds lists the generated documents in the order they are rendered.
var Kinds = []DocKind{DownloadDoc, UserDoc}

// TemplateFile is the file name looked up in a templates directory.
func (k DocKind) TemplateFile() string {
	switch k {
	case DownloadDoc:
		return "download_template.md"
	default:
		return "doc_template.md"
	}
}

// OutputName is the file name of the rendered document for a skill.
func (k DocKind) OutputName(skillName string) string {
	switch k {
	case DownloadDoc:
		return skillName + "-Download.md"
	default:
		return skillName + "-doc.md"
	}
}

func (k DocKind) builtin() string {
	if k == DownloadDoc {
		return downloadTemplate
	}
	return docTemplate
}

// Template is template text together with where it came from.
type Template struct {
	Kind DocKind
	Name string // file path, or "builtin:<file>" for embedded templates
	Text string
	// Fallback is set when a templates directory was given but did not
	// contain the file, so the embedded template was used instead.
	Fallback bool
}

// Load returns the template of the given kind from dir. An empty dir selects
// the embedded template; a dir without the file falls back to it.
func Load(dir string, kind DocKind) (*Template, error) {
	builtin := &Template{Kind: kind, Name: "builtin:" + kind.TemplateFile(), Text: kind.builtin()}
	if dir == "" {
		return builtin, nil
	}

	path := filepath.Join(dir, kind.TemplateFile())
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			builtin.Fallback = true
			return builtin, nil
		}
		return nil, errors.Wrapf(err, "failed to read template %s", path)
	}

	return &Template{Kind: kind, Name: path, Text: string(content)}, nil
}

// Render fills the template with tokens.
func (t *Template) Render(tokens Tokens, strict bool) (string, error) {
	return Render(t.Name, t.Text, tokens, strict)
}

// SkillTokens builds the standard token set for a skill.
func SkillTokens(name, description, version, license, dirName, archiveName string, date time.Time) Tokens {
	if license == "" {
		license = "Not specified"
	}
	return Tokens{
		TokenName:        name,
		TokenVersion:     version,
		TokenDescription: description,
		TokenDate:        date.Format("2006-01-02"),
		TokenDirName:     dirName,
		TokenLicense:     license,
		TokenArchiveName: archiveName,
	}
}
