package packager

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/skillpack/pkg/archive"
	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/pkg/errors"
)

// Release is an archive found in an output directory.
type Release struct {
	Name      string         `json:"name" yaml:"name"`
	Version   semver.Version `json:"version" yaml:"version"`
	Path      string         `json:"path" yaml:"path"`
	SizeBytes int64          `json:"sizeBytes" yaml:"sizeBytes"`
	SHA256    string         `json:"sha256" yaml:"sha256"`
	ModTime   time.Time      `json:"modTime" yaml:"modTime"`
}

// History lists the archives in outputDir ordered by name, then version. An
// empty name lists every skill. Files whose name does not carry a valid
// version are ignored.
func History(outputDir, name string) ([]Release, error) {
	pattern := "*-v*" + archive.Extension
	if name != "" {
		pattern = name + "-v*" + archive.Extension
	}

	matches, err := doublestar.Glob(os.DirFS(outputDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list archives in %s", outputDir)
	}

	releases := make([]Release, 0, len(matches))
	for _, match := range matches {
		skill, version, ok := parseArchiveName(match)
		if !ok || (name != "" && skill != name) {
			continue
		}

		path := filepath.Join(outputDir, match)
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %s", path)
		}
		sum, err := archive.Checksum(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to checksum %s", path)
		}

		releases = append(releases, Release{
			Name:      skill,
			Version:   version,
			Path:      path,
			SizeBytes: info.Size(),
			SHA256:    sum,
			ModTime:   info.ModTime(),
		})
	}

	sort.Slice(releases, func(i, j int) bool {
		if releases[i].Name != releases[j].Name {
			return releases[i].Name < releases[j].Name
		}
		return releases[i].Version.Less(releases[j].Version)
	})
	return releases, nil
}

// parseArchiveName splits "name-vX.Y.Z.zip" into its parts.
func parseArchiveName(file string) (string, semver.Version, bool) {
	base := strings.TrimSuffix(file, archive.Extension)
	idx := strings.LastIndex(base, "-v")
	if idx <= 0 {
		return "", semver.Version{}, false
	}
	v, err := semver.Parse(base[idx+2:])
	if err != nil {
		return "", semver.Version{}, false
	}
	return base[:idx], v, true
}
