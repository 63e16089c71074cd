package semver

import (
	"fmt"
	"math"
	"strings"
)

// ActionKind selects how the next version is derived from the current one.
type ActionKind string

const (
	// ActionKeep leaves the version unchanged.
	ActionKeep ActionKind = "keep"
	// ActionPatch bumps the patch component.
	ActionPatch ActionKind = "patch"
	// ActionMinor bumps the minor component and resets patch.
	ActionMinor ActionKind = "minor"
	// ActionMajor bumps the major component and resets minor and patch.
	ActionMajor ActionKind = "major"
	// ActionExplicit sets the version to a literal value.
	ActionExplicit ActionKind = "explicit"
)

// Action is a requested version change. Explicit is only meaningful when
// Kind is ActionExplicit.
type Action struct {
	Kind     ActionKind
	Explicit Version
}

// Keep is the zero-change action.
var Keep = Action{Kind: ActionKeep}

// ParseAction parses "keep", "patch", "minor", "major" or a literal
// MAJOR.MINOR.PATCH version. An optional leading "v" is accepted on literals.
func ParseAction(s string) (Action, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActionKeep, "":
		return Keep, nil
	case ActionPatch:
		return Action{Kind: ActionPatch}, nil
	case ActionMinor:
		return Action{Kind: ActionMinor}, nil
	case ActionMajor:
		return Action{Kind: ActionMajor}, nil
	}

	v, err := Parse(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if err != nil {
		return Action{}, &InvalidVersionError{Value: s}
	}
	return Action{Kind: ActionExplicit, Explicit: v}, nil
}

// String renders the action the way ParseAction accepts it.
func (a Action) String() string {
	if a.Kind == ActionExplicit {
		return a.Explicit.String()
	}
	if a.Kind == "" {
		return string(ActionKeep)
	}
	return string(a.Kind)
}

// Resolve applies action to current. When the result sorts before current the
// returned warning is non-nil; the caller decides whether to accept it.
func Resolve(current Version, action Action) (Version, *VersionRegressionWarning, error) {
	var next Version

	switch action.Kind {
	case ActionKeep, "":
		next = current
	case ActionPatch:
		if current.Patch == math.MaxUint64 {
			return Version{}, nil, overflowError(current, action.Kind)
		}
		next = current.IncPatch()
	case ActionMinor:
		if current.Minor == math.MaxUint64 {
			return Version{}, nil, overflowError(current, action.Kind)
		}
		next = current.IncMinor()
	case ActionMajor:
		if current.Major == math.MaxUint64 {
			return Version{}, nil, overflowError(current, action.Kind)
		}
		next = current.IncMajor()
	case ActionExplicit:
		next = action.Explicit
	default:
		return Version{}, nil, &InvalidVersionError{Value: string(action.Kind)}
	}

	if next.Less(current) {
		return next, &VersionRegressionWarning{Current: current, Requested: next}, nil
	}
	return next, nil, nil
}

func overflowError(current Version, kind ActionKind) error {
	return &InvalidVersionError{
		Value:  current.String(),
		Reason: fmt.Sprintf("%s component is already at its maximum and cannot be bumped", kind),
	}
}
