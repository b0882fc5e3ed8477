package ingestion

import (
	"errors"
	"sort"
)

var (
	// ErrFileTooLarge is returned when a file exceeds the loader's size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidEncoding is returned for content that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")

	// ErrReadTimeout is returned when a read does not finish in time.
	ErrReadTimeout = errors.New("file read timed out")

	// ErrRootNotDir is returned when the workspace root is not a directory.
	ErrRootNotDir = errors.New("workspace root is not a directory")

	// ErrDetectorPanic wraps a recovered detector panic.
	ErrDetectorPanic = errors.New("detector panicked")
)

// FileError records why one file contributed nothing to a build.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// MarshalText lets diagnostics be serialized with their message.
func (e *FileError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// Diagnostics is the list of per-file failures of one build, sorted by path.
type Diagnostics []*FileError

// Paths returns the failed file paths.
func (d Diagnostics) Paths() []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Path
	}
	return out
}

func sortDiagnostics(d Diagnostics) {
	sort.Slice(d, func(i, j int) bool { return d[i].Path < d[j].Path })
}
