// Package render fills the {{TOKEN}} placeholders of the documentation
// templates shipped next to a packaged skill.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Token names understood by the bundled templates.
const (
	TokenName        = "SKILL_NAME"
	TokenVersion     = "SKILL_VERSION"
	TokenDescription = "SKILL_DESCRIPTION"
	TokenDate        = "INSTALLATION_DATE"
	TokenDirName     = "SKILL_DIR_NAME"
	TokenLicense     = "SKILL_LICENSE"
	TokenArchiveName = "ARCHIVE_NAME"
)

// Tokens maps placeholder names (without braces) to their values.
type Tokens map[string]string

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// markerPattern matches anything that reads as a placeholder, including ones
// that are not valid token names such as {{SKILL NAME}}.
var markerPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// UnresolvedPlaceholderError lists placeholders that had no value in strict mode.
type UnresolvedPlaceholderError struct {
	Template string
	Tokens   []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	name := e.Template
	if name == "" {
		name = "template"
	}
	return fmt.Sprintf("%s: unresolved placeholders: %s", name, strings.Join(e.Tokens, ", "))
}

// Kind returns the error kind name
func (e *UnresolvedPlaceholderError) Kind() string { return "UnresolvedPlaceholderError" }

// Render replaces every placeholder in text with its value from tokens in a
// single pass, so substituted values are never expanded again. Unknown
// placeholders are left verbatim. In strict mode the output must not contain
// any {{...}} marker, whether it came from the template or from a value.
func Render(name, text string, tokens Tokens, strict bool) (string, error) {
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := tokens[key]; ok {
			return value
		}
		return match
	})

	if strict {
		if remaining := markers(out); len(remaining) > 0 {
			return "", &UnresolvedPlaceholderError{Template: name, Tokens: remaining}
		}
	}

	return out, nil
}

// markers returns the sorted unique trimmed contents of every {{...}} in text.
func markers(text string) []string {
	seen := map[string]bool{}
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		seen[strings.TrimSpace(m[1])] = true
	}
	if len(seen) == 0 {
		return nil
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Placeholders returns the sorted unique placeholder names found in text.
func Placeholders(text string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
