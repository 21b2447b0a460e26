// Package fileutil holds the tree operations shared by the runner, the
// folder backend and the test fakes: globbed listing, copying, hashing.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/copybara/copybara/internal/glob"
)

// ListFiles returns the slash-separated relative paths under root that
// match the glob, sorted.
func ListFiles(root string, matcher *glob.Glob) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matcher == nil || matcher.Matches(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// CopyTree copies files matching the glob from src into dst, preserving
// relative paths and file modes.
func CopyTree(src, dst string, matcher *glob.Glob) error {
	files, err := ListFiles(src, matcher)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := CopyFile(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies a single file, creating parent directories
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// TreeHash returns a stable content hash over the files matching the
// glob: path plus content, in sorted path order.
func TreeHash(root string, matcher *glob.Glob) (string, error) {
	files, err := ListFiles(root, matcher)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%d\x00", rel, len(content))
		h.Write(content)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RemoveMatching deletes files under root that match the glob, pruning
// directories left empty.
func RemoveMatching(root string, matcher *glob.Glob) error {
	files, err := ListFiles(root, matcher)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return pruneEmptyDirs(root)
}

func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Deepest first
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
	return nil
}

// TreesEqual compares two trees bytewise under the glob and returns the
// differing relative paths.
func TreesEqual(a, b string, matcher *glob.Glob) (bool, []string, error) {
	filesA, err := ListFiles(a, matcher)
	if err != nil {
		return false, nil, err
	}
	filesB, err := ListFiles(b, matcher)
	if err != nil {
		return false, nil, err
	}
	setA := make(map[string]struct{}, len(filesA))
	for _, f := range filesA {
		setA[f] = struct{}{}
	}
	var diffs []string
	for _, f := range filesB {
		if _, ok := setA[f]; !ok {
			diffs = append(diffs, f)
		}
	}
	for _, f := range filesA {
		pathA := filepath.Join(a, filepath.FromSlash(f))
		pathB := filepath.Join(b, filepath.FromSlash(f))
		contentB, err := os.ReadFile(pathB)
		if os.IsNotExist(err) {
			diffs = append(diffs, f)
			continue
		}
		if err != nil {
			return false, nil, err
		}
		contentA, err := os.ReadFile(pathA)
		if err != nil {
			return false, nil, err
		}
		if string(contentA) != string(contentB) {
			diffs = append(diffs, f)
		}
	}
	sort.Strings(diffs)
	return len(diffs) == 0, diffs, nil
}
