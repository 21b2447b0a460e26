package vcs

import (
	"context"
	"time"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/glob"
)

// Destination is the target VCS transformed changes are written to
type Destination interface {
	// NewWriter creates a writer for one migration iteration
	NewWriter(ctx WriterContext) (Writer, error)
	// LabelNameWhenOrigin returns the label this destination records when
	// used as an origin in a round-trip setup
	LabelNameWhenOrigin() string
	// Describe returns the audit description of this destination
	Describe(destinationFiles *glob.Glob) map[string][]string
}

// WriterContext carries the per-iteration facts a writer needs
type WriterContext struct {
	// OriginalRevision is the origin revision being migrated
	OriginalRevision change.Revision
	// DryRun suppresses actual writes
	DryRun bool
	// ContextReference is the human label of the current origin revision
	ContextReference string
}

// DestinationStatus is the durable state a destination holds for one
// migration: the last written origin revision and any in-flight changes.
type DestinationStatus struct {
	// Baseline is the origin revision id recorded at the last successful
	// write
	Baseline string
	// Pending lists in-flight changes under the same context reference
	Pending []string
}

// Writer commits transformed change sets to the destination
type Writer interface {
	// DestinationStatus returns the recorded state for labelName under
	// the destination-files glob, or nil before any write
	DestinationStatus(ctx context.Context, dstFiles *glob.Glob, labelName string) (*DestinationStatus, error)
	// Write commits one transformed change set. Effects are returned in
	// the order the destination generated them.
	Write(ctx context.Context, result *TransformResult, dstFiles *glob.Glob, con console.Console) ([]DestinationEffect, error)
	// DestinationReader gives read-only access to destination files at
	// the baseline
	DestinationReader(ctx context.Context, baseline string, workdir string) (DestinationReader, error)
	// VisitChanges walks destination history in reverse for baseline
	// inference
	VisitChanges(ctx context.Context, start string, visitor change.Visitor) error
}

// DestinationReader reads destination content at a fixed baseline
type DestinationReader interface {
	// ReadFile returns the content of a destination file
	ReadFile(path string) ([]byte, error)
	// Glob lists destination paths matching the matcher
	Glob(matcher *glob.Glob) ([]string, error)
	// CopyDestinationFiles materializes matching files into dir
	CopyDestinationFiles(matcher *glob.Glob, dir string) error
}

// TransformResult is the destination-ready change set produced by one
// workflow iteration.
type TransformResult struct {
	// Workdir holds the transformed tree, always as an absolute path
	Workdir string
	// CurrentRevision is the origin revision this result was built from
	CurrentRevision change.Revision
	// Author the destination change is written under
	Author change.Author
	// Summary is the full destination change message
	Summary string
	// Timestamp for the destination change
	Timestamp time.Time
	// Baseline for CHANGE_REQUEST writes; "" otherwise
	Baseline string
	// Changes lists the origin changes folded into this result
	Changes []change.Change
	// RevIDLabel is the label name recording the origin revision id
	RevIDLabel string
	// SetRevID asks the destination to record the rev-id label with the
	// change; the in-repo destinations do not read it and do not append
	// the label to the destination message
	SetRevID bool
}

// RevID returns the origin revision id this result must record
func (r *TransformResult) RevID() string {
	if r.CurrentRevision == nil {
		return ""
	}
	return r.CurrentRevision.AsString()
}
