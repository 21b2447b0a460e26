// Package testhelpers provides the in-memory origin and recording
// destination used by tests across the module.
package testhelpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/vcs"
)

// DummyRevIDLabel is the rev-id label the dummy origin reports
const DummyRevIDLabel = "DummyOrigin-RevId"

// DummyRevision is an in-memory revision identified by a sequence number
type DummyRevision struct {
	ID        string
	Ref       string
	Timestamp time.Time
	Labels    *change.Labels
}

// AsString implements change.Revision
func (r *DummyRevision) AsString() string { return r.ID }

// ContextReference implements change.Revision
func (r *DummyRevision) ContextReference() string { return r.Ref }

// ReadTimestamp implements change.Revision
func (r *DummyRevision) ReadTimestamp() (time.Time, bool) { return r.Timestamp, true }

// AssociatedLabels implements change.Revision
func (r *DummyRevision) AssociatedLabels() *change.Labels {
	if r.Labels == nil {
		return change.NewLabels()
	}
	return r.Labels
}

type dummyChange struct {
	change change.Change
	files  map[string]string // complete tree snapshot at this revision
}

// DummyOrigin is an in-memory origin holding a linear list of changes
type DummyOrigin struct {
	changes []dummyChange
	author  change.Author
}

// NewDummyOrigin creates an empty origin
func NewDummyOrigin() *DummyOrigin {
	return &DummyOrigin{
		author: change.Author{Name: "Dummy Author", Email: "dummy@example.com"},
	}
}

// SetAuthor overrides the author of subsequently added changes
func (o *DummyOrigin) SetAuthor(author change.Author) {
	o.author = author
}

// AddChange appends a change whose tree snapshot is files
func (o *DummyOrigin) AddChange(message string, files map[string]string) *DummyRevision {
	idx := len(o.changes)
	rev := &DummyRevision{
		ID:        fmt.Sprintf("%d", idx),
		Ref:       "head",
		Timestamp: time.Unix(1600000000+int64(idx)*60, 0),
		Labels:    change.NewLabels(),
	}
	rev.Labels.Add(DummyRevIDLabel, rev.ID)
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[k] = v
	}
	o.changes = append(o.changes, dummyChange{
		change: change.Change{
			Revision:  rev,
			Author:    o.author,
			Message:   message,
			Timestamp: rev.Timestamp,
			Labels:    rev.Labels.Copy(),
		},
		files: snapshot,
	})
	return rev
}

// Head returns the most recent revision
func (o *DummyOrigin) Head() *DummyRevision {
	if len(o.changes) == 0 {
		return nil
	}
	return o.changes[len(o.changes)-1].change.Revision.(*DummyRevision)
}

func (o *DummyOrigin) index(id string) (int, bool) {
	for i, c := range o.changes {
		if c.change.Revision.AsString() == id {
			return i, true
		}
	}
	return 0, false
}

// Resolve implements vcs.Origin
func (o *DummyOrigin) Resolve(ctx context.Context, ref string) (change.Revision, error) {
	if len(o.changes) == 0 {
		return nil, core.NewError(core.UnresolvableRevision).
			WithCause(fmt.Errorf("dummy origin has no changes")).
			Build()
	}
	if ref == "" || ref == "head" {
		return o.Head(), nil
	}
	if idx, ok := o.index(ref); ok {
		return o.changes[idx].change.Revision, nil
	}
	return nil, core.NewError(core.UnresolvableRevision).
		WithCause(fmt.Errorf("cannot resolve ref %q in dummy origin", ref)).
		Build()
}

// NewReader implements vcs.Origin
func (o *DummyOrigin) NewReader(originFiles *glob.Glob, auth *authoring.Authoring) (vcs.Reader, error) {
	return &dummyReader{origin: o, files: originFiles}, nil
}

// LabelName implements vcs.Origin
func (o *DummyOrigin) LabelName() string { return DummyRevIDLabel }

// Describe implements vcs.Origin
func (o *DummyOrigin) Describe(originFiles *glob.Glob) map[string][]string {
	return map[string][]string{
		"type": {"dummy.origin"},
		"root": {originFiles.String()},
	}
}

var (
	_ vcs.Origin = (*DummyOrigin)(nil)
	_ vcs.Reader = (*dummyReader)(nil)
)

type dummyReader struct {
	origin *DummyOrigin
	files  *glob.Glob
}

func (r *dummyReader) Checkout(ctx context.Context, rev change.Revision, workdir string) error {
	idx, ok := r.origin.index(rev.AsString())
	if !ok {
		return core.Internalf("dummy reader got unknown revision %s", rev.AsString())
	}
	for rel, content := range r.origin.changes[idx].files {
		if r.files != nil && !r.files.Matches(rel) {
			continue
		}
		path := filepath.Join(workdir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (r *dummyReader) Changes(ctx context.Context, from, to change.Revision) (*change.ChangesResponse, error) {
	toIdx, ok := r.origin.index(to.AsString())
	if !ok {
		return nil, core.NewError(core.UnresolvableRevision).
			WithCause(fmt.Errorf("unknown revision %s", to.AsString())).
			Build()
	}
	start := 0
	if from != nil {
		fromIdx, ok := r.origin.index(from.AsString())
		if !ok {
			return &change.ChangesResponse{Reason: change.UnrelatedRevisions}, nil
		}
		if fromIdx == toIdx {
			return &change.ChangesResponse{Reason: change.NoChanges}, nil
		}
		if fromIdx > toIdx {
			return &change.ChangesResponse{Reason: change.ToIsAncestor}, nil
		}
		start = fromIdx + 1
	}
	out := make([]change.Change, 0, toIdx-start+1)
	for i := start; i <= toIdx; i++ {
		out = append(out, r.origin.changes[i].change)
	}
	return &change.ChangesResponse{Changes: out}, nil
}

func (r *dummyReader) Change(ctx context.Context, rev change.Revision) (*change.Change, error) {
	idx, ok := r.origin.index(rev.AsString())
	if !ok {
		return nil, core.NewError(core.UnresolvableRevision).
			WithCause(fmt.Errorf("unknown revision %s", rev.AsString())).
			Build()
	}
	c := r.origin.changes[idx].change
	return &c, nil
}

func (r *dummyReader) VisitChanges(ctx context.Context, start change.Revision, visitor change.Visitor) error {
	idx, ok := r.origin.index(start.AsString())
	if !ok {
		return core.Internalf("dummy reader got unknown revision %s", start.AsString())
	}
	for i := idx; i >= 0; i-- {
		result, err := visitor(r.origin.changes[i].change)
		if err != nil {
			return err
		}
		if result == change.VisitTerminate {
			return nil
		}
	}
	return nil
}
