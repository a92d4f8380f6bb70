package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// IsInsideRoot reports whether candidate resolves to root itself or to a
// path strictly below it. Both paths are made absolute and cleaned first,
// which collapses any ".." segments. Comparison is case-sensitive: the
// target filesystems here (Linux) are case-sensitive.
func IsInsideRoot(root, candidate string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}

	absRoot = strings.TrimRight(absRoot, string(filepath.Separator))
	if absRoot == "" {
		absRoot = string(filepath.Separator)
	}
	if absRoot == absCandidate {
		return true
	}

	prefix := absRoot
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(absCandidate, prefix)
}

// HashPath derives the content-addressed course id for a folder: the SHA-1
// hex digest of the case-folded absolute path. Stable across re-adds of the
// same folder, so the catalog never duplicates an entry for it.
func HashPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha1.Sum([]byte(strings.ToLower(abs)))
	return hex.EncodeToString(sum[:])
}
