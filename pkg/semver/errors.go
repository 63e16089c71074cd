package semver

import "fmt"

// InvalidVersionError reports a string that is not MAJOR.MINOR.PATCH.
type InvalidVersionError struct {
	Value string
	// Path is the file the value came from, when known.
	Path string
	// Reason overrides the default "expected MAJOR.MINOR.PATCH" explanation.
	Reason string
}

func (e *InvalidVersionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "expected MAJOR.MINOR.PATCH"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: invalid version %q: %s", e.Path, e.Value, reason)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Value, reason)
}

// Kind returns the error kind name
func (e *InvalidVersionError) Kind() string { return "InvalidVersionError" }

// VersionRegressionWarning is raised when the resolved version sorts before
// the current one. It is advisory.
type VersionRegressionWarning struct {
	Current   Version
	Requested Version
}

func (w *VersionRegressionWarning) Error() string {
	return fmt.Sprintf("requested version %s is lower than current version %s", w.Requested, w.Current)
}

// Kind returns the error kind name
func (w *VersionRegressionWarning) Kind() string { return "VersionRegressionWarning" }
