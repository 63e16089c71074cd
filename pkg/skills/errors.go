package skills

import "fmt"

// MissingFileError is returned when the skill directory has no SKILL.md.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s not found", e.Path)
}

// Kind returns the error kind name
func (e *MissingFileError) Kind() string { return "MissingFileError" }

// MalformedMetadataError is returned when the frontmatter delimiters are
// missing or the block between them is not valid YAML.
type MalformedMetadataError struct {
	Path   string
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("%s: malformed frontmatter: %s", e.Path, e.Reason)
}

// Kind returns the error kind name
func (e *MalformedMetadataError) Kind() string { return "MalformedMetadataError" }

// MissingFieldError is returned when a required frontmatter field is absent or blank.
type MissingFieldError struct {
	Path  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Path, e.Field)
}

// Kind returns the error kind name
func (e *MissingFieldError) Kind() string { return "MissingFieldError" }

// InvalidNameError is returned for names that are not lowercase hyphen-case
// or exceed MaxNameLength.
type InvalidNameError struct {
	Path   string
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("%s: invalid name %q: %s", e.Path, e.Name, e.Reason)
}

// Kind returns the error kind name
func (e *InvalidNameError) Kind() string { return "InvalidNameError" }

// InvalidDescriptionError is returned when the description contains angle brackets.
type InvalidDescriptionError struct {
	Path        string
	Description string
}

func (e *InvalidDescriptionError) Error() string {
	return fmt.Sprintf("%s: description must not contain '<' or '>'", e.Path)
}

// Kind returns the error kind name
func (e *InvalidDescriptionError) Kind() string { return "InvalidDescriptionError" }
