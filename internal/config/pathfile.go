package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathFile is a File backed by a real filesystem path, with an optional
// root directory that absolute ("//") labels resolve against.
type PathFile struct {
	path string // always absolute
	root string // "" when no root is configured
}

// NewPathFile creates a path-backed File. path must be absolute; root may
// be empty when absolute labels are not used.
func NewPathFile(path, root string) (*PathFile, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("config file path %q must be absolute", path)
	}
	if root != "" && !filepath.IsAbs(root) {
		return nil, fmt.Errorf("config root %q must be absolute", root)
	}
	return &PathFile{path: filepath.Clean(path), root: filepath.Clean(root)}, nil
}

// Resolve implements File
func (f *PathFile) Resolve(label string) (File, error) {
	if err := validateLabel(label); err != nil {
		return nil, unresolvable(f.path, label, "%v", err)
	}

	// "." names the current file itself, not its directory
	if !strings.HasPrefix(label, "//") && filepath.Clean(label) == "." {
		return &PathFile{path: f.path, root: f.root}, nil
	}

	var resolved string
	if strings.HasPrefix(label, "//") {
		if f.root == "" || f.root == "." {
			return nil, unresolvable(f.path, label,
				"absolute labels require a configured root; pass %s", RootFlagHint)
		}
		resolved = filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(label, "//")))
	} else {
		resolved = filepath.Join(filepath.Dir(f.path), filepath.FromSlash(label))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, unresolvable(f.path, label, "cannot find %s: %v", resolved, err)
	}
	if !info.Mode().IsRegular() {
		return nil, unresolvable(f.path, label, "%s is not a regular file", resolved)
	}

	return &PathFile{path: resolved, root: f.root}, nil
}

// Path implements File
func (f *PathFile) Path() string {
	return f.path
}

// Identifier implements File. With a root configured the identifier is
// the root-relative path so that fingerprints survive checkouts living in
// different directories.
func (f *PathFile) Identifier() string {
	if f.root == "" || f.root == "." {
		return f.path
	}
	rel, err := filepath.Rel(f.root, f.path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return f.path
	}
	return filepath.ToSlash(rel)
}

// ReadContent implements File
func (f *PathFile) ReadContent() ([]byte, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, unresolvable(f.path, f.path, "cannot read file: %v", err)
	}
	return content, nil
}

func (f *PathFile) String() string {
	return f.path
}
