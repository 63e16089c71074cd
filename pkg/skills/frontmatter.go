package skills

import (
	"bytes"
	"strings"

	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/pkg/errors"
)

const delimiter = "---"

var (
	errMissingOpening = errors.New("file must start with a '---' line")
	errMissingClosing = errors.New("no closing '---' line")
)

// locateFrontmatter returns the byte range [start, end) holding the YAML
// between the opening and closing delimiter lines.
func locateFrontmatter(raw []byte) (int, int, error) {
	lineEnd := bytes.IndexByte(raw, '\n')
	if lineEnd < 0 {
		if isDelimiter(raw) {
			return 0, 0, errMissingClosing
		}
		return 0, 0, errMissingOpening
	}
	if !isDelimiter(raw[:lineEnd]) {
		return 0, 0, errMissingOpening
	}

	start := lineEnd + 1
	for pos := start; pos < len(raw); {
		next := bytes.IndexByte(raw[pos:], '\n')
		line := raw[pos:]
		if next >= 0 {
			line = raw[pos : pos+next]
		}
		if isDelimiter(line) {
			return start, pos, nil
		}
		if next < 0 {
			break
		}
		pos += next + 1
	}

	return 0, 0, errMissingClosing
}

func isDelimiter(line []byte) bool {
	return string(bytes.TrimRight(line, " \t\r")) == delimiter
}

// topLevelField finds a top-level "key:" line inside the frontmatter block and
// returns its index in lines along with the unquoted value. The key may itself
// be quoted. The index is -1 when the key is absent.
func topLevelField(lines []string, key string) (int, string) {
	for i, line := range lines {
		name, valueStart, ok := fieldKey(line)
		if !ok || name != key {
			continue
		}
		value, _ := splitComment(strings.TrimSuffix(line[valueStart:], "\r"))
		return i, unquote(value)
	}
	return -1, ""
}

// fieldKey parses the key of an unindented "key: value" line. valueStart is the
// offset just past the colon.
func fieldKey(line string) (name string, valueStart int, ok bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
		return "", 0, false
	}

	var end int
	if q := line[0]; q == '"' || q == '\'' {
		closing := strings.IndexByte(line[1:], q)
		if closing < 0 {
			return "", 0, false
		}
		name = line[1 : closing+1]
		end = closing + 2
	} else {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return "", 0, false
		}
		name = strings.TrimRight(line[:colon], " \t")
		end = colon
	}

	rest := strings.TrimLeft(line[end:], " \t")
	if !strings.HasPrefix(rest, ":") {
		return "", 0, false
	}
	colon := len(line) - len(rest)
	if after := rest[1:]; after != "" && after[0] != ' ' && after[0] != '\t' && after[0] != '\r' {
		return "", 0, false
	}
	return name, colon + 1, true
}

// splitComment separates a scalar from a trailing " #" comment.
func splitComment(value string) (string, string) {
	comment := ""
	if c := strings.Index(value, " #"); c >= 0 {
		comment = value[c:]
		value = value[:c]
	}
	return strings.TrimSpace(value), comment
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// SetVersion returns a copy of a SKILL.md file with its frontmatter version set
// to v. Only the version line changes; when the file has no version line one is
// inserted just before the closing delimiter. Line endings follow the file.
func SetVersion(raw []byte, v semver.Version) ([]byte, error) {
	start, end, err := locateFrontmatter(raw)
	if err != nil {
		return nil, err
	}

	newline := "\n"
	if bytes.Contains(raw[:start], []byte("\r\n")) {
		newline = "\r\n"
	}

	block := string(raw[start:end])
	lines := strings.Split(block, "\n")

	idx, _ := topLevelField(lines, "version")
	if idx >= 0 {
		_, valueStart, _ := fieldKey(lines[idx])
		lines[idx] = versionLine(lines[idx], valueStart, v)
		block = strings.Join(lines, "\n")
	} else {
		block += "version: " + v.String() + newline
	}

	var out bytes.Buffer
	out.Grow(len(raw) + len(newline) + 16)
	out.Write(raw[:start])
	out.WriteString(block)
	out.Write(raw[end:])
	return out.Bytes(), nil
}

// versionLine rewrites an existing version line keeping its key spelling,
// quoting style, trailing carriage return and any trailing comment.
func versionLine(line string, valueStart int, v semver.Version) string {
	cr := ""
	if strings.HasSuffix(line, "\r") {
		cr = "\r"
		line = strings.TrimSuffix(line, "\r")
	}

	rest, comment := splitComment(line[valueStart:])

	value := v.String()
	if len(rest) >= 2 && (rest[0] == '"' || rest[0] == '\'') {
		value = string(rest[0]) + value + string(rest[0])
	}

	return line[:valueStart] + " " + value + comment + cr
}
