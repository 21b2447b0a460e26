// Package vcs declares the contracts the workflow runner consumes from
// origin and destination backends. Backends live elsewhere; the one
// shipped in-repo is the folder backend.
package vcs

import (
	"context"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/glob"
)

// Origin is the source VCS revisions are read from
type Origin interface {
	// Resolve maps a user ref to a Revision. ref may be "" to use the
	// configured default.
	Resolve(ctx context.Context, ref string) (change.Revision, error)
	// NewReader creates a reader scoped to originFiles
	NewReader(originFiles *glob.Glob, auth *authoring.Authoring) (Reader, error)
	// LabelName returns the label under which destinations record the
	// origin revision id
	LabelName() string
	// Describe returns the audit description of this origin
	Describe(originFiles *glob.Glob) map[string][]string
}

// Reader reads revision trees and history from an origin
type Reader interface {
	// Checkout populates workdir with the revision's tree restricted to
	// the reader's origin files
	Checkout(ctx context.Context, rev change.Revision, workdir string) error
	// Changes returns changes reachable from to and not from from,
	// ordered oldest to newest. from may be nil.
	Changes(ctx context.Context, from, to change.Revision) (*change.ChangesResponse, error)
	// Change returns the change for a single revision
	Change(ctx context.Context, rev change.Revision) (*change.Change, error)
	// VisitChanges walks history from start in reverse-chronological order
	VisitChanges(ctx context.Context, start change.Revision, visitor change.Visitor) error
}
