package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotSimDir = errors.New("not a simulation directory")

// Markers are the files, relative to the run directory, that every simulation directory holds.
var Markers = []string{
	"start.in",
	"run.in",
	filepath.Join("src", "cparam.local"),
}

// Sim is a simulation run directory.
type Sim struct {
	Path string // absolute
	Name string
}

// IsSimDir reports whether path holds all of the Markers.
func IsSimDir(path string) bool {
	for _, m := range Markers {
		if info, err := os.Stat(filepath.Join(path, m)); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

func newSim(path string) (s Sim, err error) {
	if s.Path, err = filepath.Abs(path); err != nil {
		return
	}
	s.Name = filepath.Base(s.Path)
	return
}

// Open returns the simulation at path, which must be a simulation directory.
func Open(path string) (s Sim, err error) {
	if !IsSimDir(path) {
		err = fmt.Errorf("%q: %w", path, ErrNotSimDir)
		return
	}
	return newSim(path)
}

// Prepare returns the simulation at path, creating the directory and the sub-directories dirs when they are
// missing. Files of an existing simulation are left alone.
func Prepare(path string, dirs ...string) (s Sim, err error) {
	if s, err = newSim(path); err != nil {
		return
	}
	for _, dir := range append([]string{""}, dirs...) {
		if err = os.MkdirAll(filepath.Join(s.Path, dir), 0755); err != nil {
			return
		}
	}
	return
}

func (s Sim) IsSimDir() bool { return IsSimDir(s.Path) }

// Join returns a path inside the simulation directory.
func (s Sim) Join(elem ...string) string {
	return filepath.Join(append([]string{s.Path}, elem...)...)
}
