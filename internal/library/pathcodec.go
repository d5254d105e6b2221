package library

import (
	"path/filepath"
	"strings"
)

// EncodePath converts a path to its stored form: relative to the library
// root when the path lies under it, absolute otherwise. It never fails; a
// path that cannot be made relative falls back to its absolute form.
func EncodePath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// DecodePath expands a stored path back to its absolute form, resolving
// relative encodings against the library root.
func DecodePath(stored, root string) string {
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(root, stored)
}
