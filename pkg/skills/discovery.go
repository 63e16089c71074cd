package skills

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// Discover returns every directory under root that contains a SKILL.md file,
// sorted by path. A directory that is itself a skill is returned on its own
// and not descended into.
func Discover(root string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(root, FileName)); err == nil {
		return []string{root}, nil
	}

	var dirs []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && skippedDirs[entry.Name()] {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(path, FileName)); err == nil {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s for skills", root)
	}

	sort.Strings(dirs)
	return dirs, nil
}

// Result is the outcome of validating one skill directory.
type Result struct {
	Dir        string
	Descriptor *Descriptor
	Err        error
}

// ValidateAll loads every skill found under root. Validation failures are
// reported per directory rather than aborting the scan.
func ValidateAll(root string) ([]Result, error) {
	dirs, err := Discover(root)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(dirs))
	for _, dir := range dirs {
		d, err := Load(dir)
		results = append(results, Result{Dir: dir, Descriptor: d, Err: err})
	}
	return results, nil
}
