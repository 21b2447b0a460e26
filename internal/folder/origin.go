// Package folder is the filesystem origin/destination backend: the one
// concrete implementation of the vcs contracts shipped in-repo.
package folder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/copybara/copybara/internal/authoring"
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/fileutil"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/vcs"
)

// RevIDLabel is the label under which destinations record folder origin
// revision ids.
const RevIDLabel = "FolderOrigin-RevId"

// Revision is a folder tree snapshot identified by its content hash
type Revision struct {
	id        string
	dir       string
	timestamp time.Time
	labels    *change.Labels
}

// AsString implements change.Revision
func (r *Revision) AsString() string { return r.id }

// ContextReference implements change.Revision
func (r *Revision) ContextReference() string { return r.dir }

// ReadTimestamp implements change.Revision
func (r *Revision) ReadTimestamp() (time.Time, bool) { return r.timestamp, !r.timestamp.IsZero() }

// AssociatedLabels implements change.Revision
func (r *Revision) AssociatedLabels() *change.Labels {
	if r.labels == nil {
		return change.NewLabels()
	}
	return r.labels
}

// Origin reads a directory as a single synthetic revision. A folder has
// no history: every resolve snapshots the current tree.
type Origin struct {
	dir    string
	author change.Author
}

// NewOrigin creates a folder origin over dir
func NewOrigin(dir string) (*Origin, error) {
	if dir == "" {
		return nil, fmt.Errorf("folder origin requires a directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Origin{
		dir:    abs,
		author: change.Author{Name: "Folder Origin", Email: "folder@localhost"},
	}, nil
}

// Resolve implements vcs.Origin. ref may be "" (use the configured
// directory) or a directory path override.
func (o *Origin) Resolve(ctx context.Context, ref string) (change.Revision, error) {
	if isTreeHash(ref) {
		// A previously recorded snapshot id, typically the destination
		// baseline. The tree itself is gone; only identity survives.
		labels := change.NewLabels()
		labels.Add(RevIDLabel, ref)
		return &Revision{id: ref, dir: o.dir, labels: labels}, nil
	}
	dir := o.dir
	if ref != "" {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return nil, err
		}
		dir = abs
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, core.NewError(core.UnresolvableRevision).
			WithOperation("resolving folder origin ref").
			WithCause(fmt.Errorf("%s is not a readable directory", dir)).
			Build()
	}
	hash, err := fileutil.TreeHash(dir, nil)
	if err != nil {
		return nil, core.NewError(core.RepositoryError).
			WithOperation("hashing folder origin tree").
			WithCause(err).
			Build()
	}
	labels := change.NewLabels()
	labels.Add(RevIDLabel, hash)
	return &Revision{id: hash, dir: dir, timestamp: info.ModTime(), labels: labels}, nil
}

// NewReader implements vcs.Origin
func (o *Origin) NewReader(originFiles *glob.Glob, auth *authoring.Authoring) (vcs.Reader, error) {
	return &Reader{origin: o, files: originFiles}, nil
}

// LabelName implements vcs.Origin
func (o *Origin) LabelName() string { return RevIDLabel }

// Describe implements vcs.Origin
func (o *Origin) Describe(originFiles *glob.Glob) map[string][]string {
	return map[string][]string{
		"type": {"folder.origin"},
		"path": {o.dir},
		"root": {originFiles.String()},
	}
}

// Reader reads folder origin snapshots
type Reader struct {
	origin *Origin
	files  *glob.Glob
}

// Checkout implements vcs.Reader
func (r *Reader) Checkout(ctx context.Context, rev change.Revision, workdir string) error {
	fr, ok := rev.(*Revision)
	if !ok {
		return core.Internalf("folder reader got a foreign revision %T", rev)
	}
	if err := fileutil.CopyTree(fr.dir, workdir, r.files); err != nil {
		return core.NewError(core.RepositoryError).
			WithOperation("checking out folder origin").
			WithCause(err).
			Transient().
			Build()
	}
	return nil
}

// Changes implements vcs.Reader. A folder origin exposes at most one
// change: the current snapshot.
func (r *Reader) Changes(ctx context.Context, from, to change.Revision) (*change.ChangesResponse, error) {
	if from != nil && change.SameRevision(from, to) {
		return &change.ChangesResponse{Reason: change.NoChanges}, nil
	}
	c, err := r.Change(ctx, to)
	if err != nil {
		return nil, err
	}
	return &change.ChangesResponse{Changes: []change.Change{*c}}, nil
}

// Change implements vcs.Reader
func (r *Reader) Change(ctx context.Context, rev change.Revision) (*change.Change, error) {
	fr, ok := rev.(*Revision)
	if !ok {
		return nil, core.Internalf("folder reader got a foreign revision %T", rev)
	}
	return &change.Change{
		Revision:  rev,
		Author:    r.origin.author,
		Message:   fmt.Sprintf("Import of %s\n", fr.dir),
		Timestamp: fr.timestamp,
		Labels:    fr.AssociatedLabels().Copy(),
	}, nil
}

// VisitChanges implements vcs.Reader
func (r *Reader) VisitChanges(ctx context.Context, start change.Revision, visitor change.Visitor) error {
	c, err := r.Change(ctx, start)
	if err != nil {
		return err
	}
	_, err = visitor(*c)
	return err
}

var (
	_ vcs.Origin      = (*Origin)(nil)
	_ vcs.Reader      = (*Reader)(nil)
	_ change.Revision = (*Revision)(nil)
)

// isTreeHash reports whether ref has the shape of a snapshot id
func isTreeHash(ref string) bool {
	if len(ref) != 64 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
