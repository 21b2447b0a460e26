// Package authoring decides which author a destination change is written
// under, based on the origin change's author and an allow-list policy.
package authoring

import (
	"fmt"
	"strings"

	"github.com/copybara/copybara/internal/change"
)

// Mode selects how origin authorship is mapped to destination authorship
type Mode int

const (
	// PassThru keeps the origin author
	PassThru Mode = iota
	// Overwrite always uses the default author
	Overwrite
	// Allowed keeps origin authors on the allow-list, else the default
	Allowed
)

func (m Mode) String() string {
	switch m {
	case PassThru:
		return "PASS_THRU"
	case Overwrite:
		return "OVERWRITE"
	case Allowed:
		return "ALLOWED"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses a mode name. Matching is case-sensitive exact, same as
// every other enum surfaced to config files.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "PASS_THRU":
		return PassThru, nil
	case "OVERWRITE":
		return Overwrite, nil
	case "ALLOWED":
		return Allowed, nil
	default:
		return PassThru, fmt.Errorf("invalid authoring mode %q, valid values: PASS_THRU, OVERWRITE, ALLOWED", s)
	}
}

// Authoring is the immutable authorship policy of one migration
type Authoring struct {
	defaultAuthor change.Author
	mode          Mode
	allowed       map[string]struct{}
}

// New creates an authoring policy. allowed is only consulted in Allowed
// mode and is keyed by author email.
func New(defaultAuthor change.Author, mode Mode, allowed []string) (*Authoring, error) {
	if defaultAuthor.Name == "" || defaultAuthor.Email == "" {
		return nil, fmt.Errorf("default author requires both name and email, got %q", defaultAuthor)
	}
	if mode != Allowed && len(allowed) > 0 {
		return nil, fmt.Errorf("allowlist is only valid in ALLOWED mode, not %s", mode)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("empty entry in authoring allowlist")
		}
		if _, dup := set[a]; dup {
			return nil, fmt.Errorf("duplicate entry %q in authoring allowlist", a)
		}
		set[a] = struct{}{}
	}
	return &Authoring{defaultAuthor: defaultAuthor, mode: mode, allowed: set}, nil
}

// DefaultAuthor returns the configured fallback author
func (a *Authoring) DefaultAuthor() change.Author {
	return a.defaultAuthor
}

// Mode returns the authorship mode
func (a *Authoring) Mode() Mode {
	return a.mode
}

// UseAuthor reports whether the origin author survives into the destination
func (a *Authoring) UseAuthor(author change.Author) bool {
	switch a.mode {
	case PassThru:
		return true
	case Overwrite:
		return false
	case Allowed:
		_, ok := a.allowed[author.Email]
		return ok
	default:
		return false
	}
}

// Resolve maps an origin author to the destination author per the policy
func (a *Authoring) Resolve(author change.Author) change.Author {
	if author.Name != "" && author.Email != "" && a.UseAuthor(author) {
		return author
	}
	return a.defaultAuthor
}

// Describe returns the audit description entries of this policy
func (a *Authoring) Describe() map[string][]string {
	out := map[string][]string{
		"mode":           {a.mode.String()},
		"default_author": {a.defaultAuthor.String()},
	}
	for email := range a.allowed {
		out["allowed"] = append(out["allowed"], email)
	}
	return out
}
