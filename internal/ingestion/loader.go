package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader supplies file text to the builder.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// FSLoader reads files from disk.
type FSLoader struct {
	// MaxFileSize rejects larger files; 0 means unlimited.
	MaxFileSize int64

	// Timeout bounds a single read; 0 means no timeout beyond ctx.
	Timeout time.Duration
}

// NewFSLoader creates a disk loader.
func NewFSLoader(maxFileSize int64, timeout time.Duration) *FSLoader {
	return &FSLoader{MaxFileSize: maxFileSize, Timeout: timeout}
}

type readResult struct {
	data []byte
	err  error
}

// Load reads path as UTF-8 text with any byte order mark removed.
func (l *FSLoader) Load(ctx context.Context, path string) (string, error) {
	readCtx := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	// Buffered so the reader never blocks after a timeout.
	ch := make(chan readResult, 1)
	go func() {
		data, err := l.read(path)
		ch <- readResult{data: data, err: err}
	}()

	select {
	case <-readCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrReadTimeout
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		return decodeText(r.data)
	}
}

func (l *FSLoader) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", info.Mode())
	}
	if l.MaxFileSize > 0 && info.Size() > l.MaxFileSize {
		return nil, fmt.Errorf("%d bytes: %w", info.Size(), ErrFileTooLarge)
	}

	var r io.Reader = f
	if l.MaxFileSize > 0 {
		// The file may grow between stat and read.
		r = io.LimitReader(f, l.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if l.MaxFileSize > 0 && int64(len(data)) > l.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}

// MapLoader serves file text from memory.
type MapLoader map[string]string

// Load returns the text stored for path.
func (m MapLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, ok := m[path]
	if !ok {
		return "", fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return decodeText([]byte(text))
}

// isCancellation reports whether err came from the caller abandoning the
// build rather than from the file itself.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
