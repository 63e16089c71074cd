// Package osutil provides filesystem helpers for writing outputs so that a
// destination path only ever holds complete content.
package osutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// StagedFile is content written to a hidden temporary file beside its
// destination. Nothing is visible at FinalPath until Commit.
type StagedFile struct {
	TempPath  string
	FinalPath string
	committed bool
	// backupPath holds the file that Commit replaced until Cleanup.
	backupPath string
}

// CreateStaged opens a temporary file in the directory of finalPath. The
// caller writes to and closes the returned file, then calls Commit or Discard.
func CreateStaged(finalPath string, perm os.FileMode) (*os.File, *StagedFile, error) {
	dir, base := filepath.Split(finalPath)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, nil, err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, nil, err
	}

	return f, &StagedFile{TempPath: f.Name(), FinalPath: finalPath}, nil
}

// WriteStaged writes data to a new staged file for finalPath.
func WriteStaged(finalPath string, data []byte, perm os.FileMode) (*StagedFile, error) {
	f, staged, err := CreateStaged(finalPath, perm)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stage %s", finalPath)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		staged.Discard()
		return nil, errors.Wrapf(err, "failed to write %s", staged.TempPath)
	}
	if err := f.Close(); err != nil {
		staged.Discard()
		return nil, errors.Wrapf(err, "failed to close %s", staged.TempPath)
	}

	return staged, nil
}

// Commit atomically renames the temporary file onto FinalPath. A file already
// at FinalPath is kept aside until Cleanup so that Rollback can restore it.
func (s *StagedFile) Commit() error {
	if s.committed {
		return nil
	}
	if err := CheckDestination(s.FinalPath); err != nil {
		return err
	}

	if FileExists(s.FinalPath) {
		backup, err := backupFile(s.FinalPath)
		if err != nil {
			return errors.Wrapf(err, "failed to back up %s", s.FinalPath)
		}
		s.backupPath = backup
	}

	if err := os.Rename(s.TempPath, s.FinalPath); err != nil {
		s.Cleanup()
		return errors.Wrapf(err, "failed to move %s into place", s.FinalPath)
	}
	s.committed = true
	return nil
}

// Rollback undoes a successful Commit, restoring the replaced file or removing
// the one Commit created. Before Commit it behaves like Discard.
func (s *StagedFile) Rollback() error {
	if !s.committed {
		return s.Discard()
	}

	if s.backupPath != "" {
		if err := os.Rename(s.backupPath, s.FinalPath); err != nil {
			return errors.Wrapf(err, "failed to restore %s", s.FinalPath)
		}
		s.backupPath = ""
	} else if err := os.Remove(s.FinalPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", s.FinalPath)
	}

	s.committed = false
	return nil
}

// Cleanup removes the backup kept by Commit. After Cleanup a commit can no
// longer be rolled back to the previous content.
func (s *StagedFile) Cleanup() error {
	if s.backupPath == "" {
		return nil
	}
	if err := os.Remove(s.backupPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", s.backupPath)
	}
	s.backupPath = ""
	return nil
}

// Discard removes the temporary file. It is a no-op after Commit.
func (s *StagedFile) Discard() error {
	if s.committed {
		return nil
	}
	if err := os.Remove(s.TempPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", s.TempPath)
	}
	return nil
}

// CheckDestination fails when path exists and is a directory, which a staged
// file could never be renamed onto.
func CheckDestination(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to inspect %s", path)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	return nil
}

// backupFile links path to a hidden sibling, copying when the filesystem
// does not support hard links.
func backupFile(path string) (string, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, "."+base+".*.bak")
	if err != nil {
		return "", err
	}
	backup := f.Name()
	f.Close()
	if err := os.Remove(backup); err != nil {
		return "", err
	}

	if err := os.Link(path, backup); err == nil {
		return backup, nil
	}
	if err := copyFile(path, backup); err != nil {
		os.Remove(backup)
		return "", err
	}
	return backup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Committed reports whether Commit succeeded.
func (s *StagedFile) Committed() bool {
	return s.committed
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
