package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"slices"
	"strings"
)

// KnownFiles is the read-only set of indexable file paths that references
// are resolved against. It is built once per graph build and shared by all
// detector invocations.
type KnownFiles struct {
	paths       []string
	set         map[string]struct{}
	byStem      map[string]string
	fingerprint string
}

// NewKnownFiles builds the resolution index for the given paths.
// Duplicate paths are collapsed.
func NewKnownFiles(paths []string) *KnownFiles {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	k := &KnownFiles{
		paths:  sorted,
		set:    make(map[string]struct{}, len(sorted)),
		byStem: make(map[string]string, len(sorted)),
	}

	h := sha256.New()
	for _, p := range sorted {
		k.set[p] = struct{}{}

		// Paths are visited in sorted order, so the first path stored for a
		// stem is the lexicographically smallest one.
		stem := stemOf(p)
		if _, ok := k.byStem[stem]; !ok {
			k.byStem[stem] = p
		}

		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	k.fingerprint = hex.EncodeToString(h.Sum(nil))

	return k
}

// Has reports whether path is a known file.
func (k *KnownFiles) Has(path string) bool {
	if k == nil {
		return false
	}
	_, ok := k.set[path]
	return ok
}

// LookupStem returns the known file whose extension-stripped base name
// equals name, ignoring case. Ties between files sharing a stem resolve to
// the lexicographically smallest path.
func (k *KnownFiles) LookupStem(name string) (string, bool) {
	if k == nil {
		return "", false
	}
	p, ok := k.byStem[strings.ToLower(name)]
	return p, ok
}

// Paths returns the known paths in sorted order.
func (k *KnownFiles) Paths() []string {
	if k == nil {
		return nil
	}
	return slices.Clone(k.paths)
}

// Len returns the number of known files.
func (k *KnownFiles) Len() int {
	if k == nil {
		return 0
	}
	return len(k.paths)
}

// Fingerprint returns a stable hash of the path set. Two KnownFiles with the
// same paths have the same fingerprint.
func (k *KnownFiles) Fingerprint() string {
	if k == nil {
		return ""
	}
	return k.fingerprint
}

// Equal reports whether both sets hold the same paths.
func (k *KnownFiles) Equal(other *KnownFiles) bool {
	return k.Fingerprint() == other.Fingerprint()
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// resolveRelative resolves target against the directory holding fromFile.
// Absolute targets are only cleaned.
func resolveRelative(fromFile, target string) string {
	target = filepath.FromSlash(target)
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(filepath.Dir(fromFile), target)
}
