// Package change holds the revision and change model shared by origins,
// destinations and the workflow runner.
package change

import (
	"strings"
	"time"
)

// Revision is an opaque token for a single origin or destination revision.
// Equality is by AsString.
type Revision interface {
	// AsString returns the stable identifier of the revision
	AsString() string
	// ContextReference returns the human label the user supplied to reach
	// this revision (branch, tag), or "" when none applies
	ContextReference() string
	// ReadTimestamp returns the revision timestamp when the backend knows it
	ReadTimestamp() (time.Time, bool)
	// AssociatedLabels returns labels attached to the revision
	AssociatedLabels() *Labels
}

// SameRevision reports whether two revisions identify the same commit
func SameRevision(a, b Revision) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AsString() == b.AsString()
}

// Change describes one origin or destination commit
type Change struct {
	Revision  Revision
	Author    Author
	Message   string
	Timestamp time.Time
	Labels    *Labels
	// ChangedFiles lists files touched by the change; nil when the backend
	// cannot compute it
	ChangedFiles []string
	// Parents lists parent revisions; nil when the backend cannot compute it
	Parents []Revision
	Merge   bool
}

// Author identifies a commit author
type Author struct {
	Name  string
	Email string
}

// String renders the author in "Name <email>" form
func (a Author) String() string {
	return a.Name + " <" + a.Email + ">"
}

// ParseAuthor parses "Name <email>" form
func ParseAuthor(s string) (Author, bool) {
	open := strings.LastIndex(s, "<")
	close := strings.LastIndex(s, ">")
	if open <= 0 || close != len(s)-1 || close < open {
		return Author{}, false
	}
	name := strings.TrimSpace(s[:open])
	email := s[open+1 : close]
	if name == "" || email == "" {
		return Author{}, false
	}
	return Author{Name: name, Email: email}, true
}

// FirstLine returns the summary line of the change message
func (c *Change) FirstLine() string {
	if idx := strings.IndexByte(c.Message, '\n'); idx >= 0 {
		return c.Message[:idx]
	}
	return c.Message
}

// Changes is the envelope passed to transformations: the changes being
// migrated on this run plus a bounded window of previously migrated ones.
type Changes struct {
	Current  []Change
	Migrated []Change
}

// EmptyChanges is a legal envelope with no entries
func EmptyChanges() Changes {
	return Changes{}
}

// VisitResult controls history traversal
type VisitResult int

const (
	// VisitContinue keeps traversing
	VisitContinue VisitResult = iota
	// VisitTerminate stops traversal without error
	VisitTerminate
)

// Visitor observes changes in reverse-chronological order
type Visitor func(Change) (VisitResult, error)

// EmptyReason explains why an origin returned no changes
type EmptyReason int

const (
	// NotEmpty means changes were found
	NotEmpty EmptyReason = iota
	// NoChanges means from and to are the same revision
	NoChanges
	// ToIsAncestor means the requested revision is an ancestor of the baseline
	ToIsAncestor
	// UnrelatedRevisions means from and to share no history
	UnrelatedRevisions
)

func (r EmptyReason) String() string {
	switch r {
	case NotEmpty:
		return "NOT_EMPTY"
	case NoChanges:
		return "NO_CHANGES"
	case ToIsAncestor:
		return "TO_IS_ANCESTOR"
	case UnrelatedRevisions:
		return "UNRELATED_REVISIONS"
	default:
		return "UNKNOWN"
	}
}

// ChangesResponse is the result of an origin history query
type ChangesResponse struct {
	Changes []Change
	Reason  EmptyReason
}

// IsEmpty reports whether the response carries no changes
func (r *ChangesResponse) IsEmpty() bool {
	return len(r.Changes) == 0
}
