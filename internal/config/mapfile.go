package config

import (
	"path"
	"strings"
)

// MapFile is a File backed by an immutable map from absolute logical
// path to byte blob plus a cursor for the current file. The map's key
// space plays the role of the filesystem root.
type MapFile struct {
	files   map[string][]byte
	current string
}

// NewMapFile creates a map-backed File positioned at current. Keys are
// slash-separated logical paths without a leading slash.
func NewMapFile(files map[string]string, current string) (*MapFile, error) {
	blobs := make(map[string][]byte, len(files))
	for k, v := range files {
		blobs[strings.TrimPrefix(k, "/")] = []byte(v)
	}
	f := &MapFile{files: blobs, current: strings.TrimPrefix(current, "/")}
	if _, ok := blobs[f.current]; !ok {
		return nil, unresolvable(current, current, "no such config file in map")
	}
	return f, nil
}

// Resolve implements File
func (f *MapFile) Resolve(label string) (File, error) {
	if err := validateLabel(label); err != nil {
		return nil, unresolvable(f.current, label, "%v", err)
	}

	// "." names the current file itself, not its directory
	if path.Clean(label) == "." {
		return &MapFile{files: f.files, current: f.current}, nil
	}

	var target string
	if strings.HasPrefix(label, "//") {
		target = strings.TrimPrefix(label, "//")
	} else {
		dir := path.Dir(f.current)
		if dir == "." {
			target = label
		} else {
			target = path.Join(dir, label)
		}
	}
	target = path.Clean(target)

	if _, ok := f.files[target]; !ok {
		return nil, unresolvable(f.current, label, "cannot find %s", target)
	}
	return &MapFile{files: f.files, current: target}, nil
}

// Path implements File
func (f *MapFile) Path() string {
	return f.current
}

// Identifier implements File
func (f *MapFile) Identifier() string {
	return f.current
}

// ReadContent implements File
func (f *MapFile) ReadContent() ([]byte, error) {
	content, ok := f.files[f.current]
	if !ok {
		return nil, unresolvable(f.current, f.current, "config file vanished from map")
	}
	return content, nil
}

func (f *MapFile) String() string {
	return f.current
}
