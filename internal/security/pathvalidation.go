// Package security guards the filesystem surface of the report tooling:
// the output directory a rendered venue report may land in, and the
// venue-derived pieces of its file name.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory rejects report output paths that resolve
// outside dir. Symlinks along the path are resolved first so a link
// inside dir cannot redirect the write elsewhere; for a path that does
// not exist yet, the nearest existing ancestor is resolved instead.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	canonical, err := canonicalize(absPath)
	if err != nil {
		return err
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonical)
	if err != nil {
		return fmt.Errorf("path is outside the output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in abs. The report file itself usually
// does not exist yet, so on a missing path the walk climbs to the
// nearest existing ancestor, resolves that, and rejoins the remainder.
func canonicalize(abs string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	cur := abs
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			// Hit the filesystem root without an existing ancestor.
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, abs)
			if err != nil {
				return "", fmt.Errorf("failed to resolve output path: %w", err)
			}
			return filepath.Join(resolved, rel), nil
		}
		cur = parent
	}
}

// SanitizeFilename turns a venue name into a filename fragment: ASCII
// letters, digits, dot, underscore, and dash pass through, runs of
// anything else collapse to a single underscore, and the result is
// capped at 64 bytes. An empty or fully stripped name yields "venue".
func SanitizeFilename(name string) string {
	const maxLen = 64
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "venue"
	}
	return out
}
