package archive

import (
	"fmt"

	"github.com/jingkaihe/skillpack/pkg/semver"
)

// OutputPathError is returned when the output directory cannot be created or
// written to.
type OutputPathError struct {
	Path string
	Err  error
}

func (e *OutputPathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("no output directory: %v", e.Err)
	}
	return fmt.Sprintf("output directory %s is not usable: %v", e.Path, e.Err)
}

func (e *OutputPathError) Unwrap() error { return e.Err }

// Kind returns the error kind name
func (e *OutputPathError) Kind() string { return "OutputPathError" }

// DuplicateVersionError reports that an archive for the same name and version
// already exists. It is a warning: the caller may overwrite or abort.
type DuplicateVersionError struct {
	Path    string
	Name    string
	Version semver.Version
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("%s v%s is already packaged at %s", e.Name, e.Version, e.Path)
}

// Kind returns the error kind name
func (e *DuplicateVersionError) Kind() string { return "DuplicateVersionError" }

// ChecksumMismatchError reports an archive whose digest differs from the
// expected one.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: checksum %s does not match expected %s", e.Path, e.Actual, e.Expected)
}

// Kind returns the error kind name
func (e *ChecksumMismatchError) Kind() string { return "ChecksumMismatchError" }
