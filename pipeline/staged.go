package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// stagedFile is a hidden temporary file next to target. Nothing is visible at
// target until commit renames it into place.
type stagedFile struct {
	*os.File
	target string
}

func createStaged(target string) (*stagedFile, error) {
	if err := ensureDir(target); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("chmod staging file: %w", err)
	}
	return &stagedFile{File: f, target: target}, nil
}

// commit closes the file and moves it over target.
func (s *stagedFile) commit() error {
	if err := s.File.Close(); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(s.Name(), s.target); err != nil {
		os.Remove(s.Name())
		return fmt.Errorf("replace %s: %w", s.target, err)
	}
	return nil
}

// discard closes and removes the file, leaving target untouched.
func (s *stagedFile) discard() error {
	s.File.Close()
	if err := os.Remove(s.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}
