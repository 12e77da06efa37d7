package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath canonicalizes path (following symlinks through the deepest
// existing ancestor) and rejects it unless it falls under one of the
// allowlisted roots. Relative paths resolve against the first root.
//
// The symlink walk matters: a path like /work/link/../../etc/passwd can pass
// a lexical prefix check while escaping after resolution, so containment is
// always decided on the resolved form.
func (p *Policy) ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", NewValidationError("path", "must not be empty")
	}
	if len(p.roots) == 0 {
		return "", NewViolation("path", "no filesystem roots are allowlisted")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(p.roots[0], path)
	}
	resolved, err := resolveExisting(filepath.Clean(path))
	if err != nil {
		return "", NewValidationError("path", "cannot resolve %q: %v", path, err)
	}

	for _, root := range p.roots {
		if withinRoot(root, resolved) {
			return resolved, nil
		}
	}
	return "", NewViolation("path", "%q resolves outside the allowed roots", path)
}

// CheckReadSize rejects files above the read ceiling before any content is
// loaded. Missing files pass; the caller reports os errors on open.
func (p *Policy) CheckReadSize(resolved string) error {
	info, err := os.Stat(resolved)
	if err != nil {
		return nil
	}
	if info.Size() > p.maxFileBytes {
		return NewViolation("size", "file is %d bytes, limit is %d", info.Size(), p.maxFileBytes)
	}
	return nil
}

// CheckWriteSize rejects writes above the file size ceiling.
func (p *Policy) CheckWriteSize(n int) error {
	if int64(n) > p.maxFileBytes {
		return NewViolation("size", "content is %d bytes, limit is %d", n, p.maxFileBytes)
	}
	return nil
}

// resolveExisting follows symlinks for the deepest existing ancestor of path
// and rejoins the non-existing remainder, so paths about to be created are
// still resolved against the real directory tree.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if remainder == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		if remainder == "" {
			remainder = filepath.Base(current)
		} else {
			remainder = filepath.Join(filepath.Base(current), remainder)
		}
		current = parent
	}
}

func withinRoot(root, path string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
