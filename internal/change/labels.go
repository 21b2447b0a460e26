package change

import (
	"fmt"
	"regexp"
	"strings"
)

var labelNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLabelName reports whether name is usable as a metadata label key.
func ValidLabelName(name string) bool {
	return labelNamePattern.MatchString(name)
}

// Labels is an insertion-ordered multimap from label name to values.
// The zero value is ready to use.
type Labels struct {
	keys   []string
	values map[string][]string
}

// NewLabels creates an empty label multimap
func NewLabels() *Labels {
	return &Labels{values: make(map[string][]string)}
}

// Add appends a value under name, preserving insertion order of names
func (l *Labels) Add(name, value string) {
	if l.values == nil {
		l.values = make(map[string][]string)
	}
	if _, ok := l.values[name]; !ok {
		l.keys = append(l.keys, name)
	}
	l.values[name] = append(l.values[name], value)
}

// Set replaces all values under name
func (l *Labels) Set(name, value string) {
	if l.values == nil {
		l.values = make(map[string][]string)
	}
	if _, ok := l.values[name]; !ok {
		l.keys = append(l.keys, name)
	}
	l.values[name] = []string{value}
}

// Remove drops every value under name
func (l *Labels) Remove(name string) {
	if l.values == nil {
		return
	}
	if _, ok := l.values[name]; !ok {
		return
	}
	delete(l.values, name)
	for i, k := range l.keys {
		if k == name {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
}

// Get returns all values under name, oldest first
func (l *Labels) Get(name string) []string {
	if l.values == nil {
		return nil
	}
	return append([]string(nil), l.values[name]...)
}

// First returns the first value under name, or "" when absent
func (l *Labels) First(name string) string {
	if vs := l.values[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Last returns the most recently added value under name, or "" when absent
func (l *Labels) Last(name string) string {
	if vs := l.values[name]; len(vs) > 0 {
		return vs[len(vs)-1]
	}
	return ""
}

// Has reports whether name has at least one value
func (l *Labels) Has(name string) bool {
	return len(l.values[name]) > 0
}

// Names returns label names in insertion order
func (l *Labels) Names() []string {
	return append([]string(nil), l.keys...)
}

// Len returns the number of distinct label names
func (l *Labels) Len() int {
	return len(l.keys)
}

// Copy returns an independent copy
func (l *Labels) Copy() *Labels {
	out := NewLabels()
	for _, k := range l.keys {
		for _, v := range l.values[k] {
			out.Add(k, v)
		}
	}
	return out
}

// String renders the labels as "Name: value" lines in insertion order
func (l *Labels) String() string {
	var sb strings.Builder
	for _, k := range l.keys {
		for _, v := range l.values[k] {
			fmt.Fprintf(&sb, "%s: %s\n", k, v)
		}
	}
	return sb.String()
}

// ParseMessageLabels extracts trailing "Name: value" label lines from a
// commit message. Only the final paragraph is scanned.
func ParseMessageLabels(message string) *Labels {
	labels := NewLabels()
	paragraphs := strings.Split(strings.TrimRight(message, "\n"), "\n\n")
	if len(paragraphs) == 0 {
		return labels
	}
	last := paragraphs[len(paragraphs)-1]
	for _, line := range strings.Split(last, "\n") {
		idx := strings.Index(line, ": ")
		if idx <= 0 {
			continue
		}
		name := line[:idx]
		if !ValidLabelName(name) {
			continue
		}
		labels.Add(name, line[idx+2:])
	}
	return labels
}
