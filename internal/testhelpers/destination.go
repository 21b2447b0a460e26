package testhelpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/fileutil"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/vcs"
)

// WriteRecord is one processed destination write
type WriteRecord struct {
	Author   change.Author
	Summary  string
	RevID    string
	DryRun   bool
	Baseline string
	// Files is the tree snapshot of the written workdir
	Files map[string]string
}

// RecordingDestination keeps every processed write in memory. Writes are
// deduped by the rev-id label, like real destinations.
type RecordingDestination struct {
	mu        sync.Mutex
	Processed []WriteRecord
	baselines map[string]string // labelName -> origin rev id
	pending   map[string][]string
}

// NewRecordingDestination creates an empty destination
func NewRecordingDestination() *RecordingDestination {
	return &RecordingDestination{
		baselines: make(map[string]string),
		pending:   make(map[string][]string),
	}
}

// SetBaseline seeds the recorded baseline, as if a prior run wrote it
func (d *RecordingDestination) SetBaseline(labelName, revID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baselines[labelName] = revID
}

// LastWrite returns the most recent non-dry-run record
func (d *RecordingDestination) LastWrite() *WriteRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Processed) - 1; i >= 0; i-- {
		if !d.Processed[i].DryRun {
			return &d.Processed[i]
		}
	}
	return nil
}

// NewWriter implements vcs.Destination
func (d *RecordingDestination) NewWriter(ctx vcs.WriterContext) (vcs.Writer, error) {
	return &recordingWriter{dest: d, ctx: ctx}, nil
}

// LabelNameWhenOrigin implements vcs.Destination
func (d *RecordingDestination) LabelNameWhenOrigin() string { return "RecordingDestination-RevId" }

// Describe implements vcs.Destination
func (d *RecordingDestination) Describe(destinationFiles *glob.Glob) map[string][]string {
	return map[string][]string{
		"type": {"recording.destination"},
		"root": {destinationFiles.String()},
	}
}

type recordingWriter struct {
	dest *RecordingDestination
	ctx  vcs.WriterContext
}

func (w *recordingWriter) DestinationStatus(ctx context.Context, dstFiles *glob.Glob, labelName string) (*vcs.DestinationStatus, error) {
	w.dest.mu.Lock()
	defer w.dest.mu.Unlock()
	baseline, ok := w.dest.baselines[labelName]
	if !ok && len(w.dest.pending[labelName]) == 0 {
		return nil, nil
	}
	return &vcs.DestinationStatus{
		Baseline: baseline,
		Pending:  append([]string(nil), w.dest.pending[labelName]...),
	}, nil
}

func (w *recordingWriter) Write(ctx context.Context, result *vcs.TransformResult, dstFiles *glob.Glob, con console.Console) ([]vcs.DestinationEffect, error) {
	w.dest.mu.Lock()
	defer w.dest.mu.Unlock()

	if w.dest.baselines[result.RevIDLabel] == result.RevID() && result.RevID() != "" {
		return nil, core.NewError(core.EmptyChange).
			WithOperation("writing to recording destination").
			WithCause(fmt.Errorf("revision %s is already recorded", result.RevID())).
			Build()
	}

	files, err := snapshotTree(result.Workdir, dstFiles)
	if err != nil {
		return nil, err
	}

	record := WriteRecord{
		Author:   result.Author,
		Summary:  result.Summary,
		RevID:    result.RevID(),
		DryRun:   w.ctx.DryRun,
		Baseline: result.Baseline,
		Files:    files,
	}
	w.dest.Processed = append(w.dest.Processed, record)

	if w.ctx.DryRun {
		w.dest.pending[result.RevIDLabel] = append(w.dest.pending[result.RevIDLabel], result.RevID())
		return []vcs.DestinationEffect{vcs.NewNoopEffect(
			fmt.Sprintf("dry run: would write %s", result.RevID()), result.Changes)}, nil
	}

	w.dest.baselines[result.RevIDLabel] = result.RevID()
	w.dest.pending[result.RevIDLabel] = nil
	return []vcs.DestinationEffect{vcs.NewCreatedEffect(
		firstLine(result.Summary),
		result.Changes,
		&vcs.DestinationRef{Type: "recording", ID: fmt.Sprintf("write-%d", len(w.dest.Processed))},
	)}, nil
}

func (w *recordingWriter) DestinationReader(ctx context.Context, baseline string, workdir string) (vcs.DestinationReader, error) {
	last := w.dest.LastWrite()
	files := map[string]string{}
	if last != nil {
		files = last.Files
	}
	return &recordingReader{files: files}, nil
}

func (w *recordingWriter) VisitChanges(ctx context.Context, start string, visitor change.Visitor) error {
	w.dest.mu.Lock()
	records := append([]WriteRecord(nil), w.dest.Processed...)
	w.dest.mu.Unlock()
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		labels := change.NewLabels()
		c := change.Change{
			Revision: &DummyRevision{ID: rec.RevID},
			Author:   rec.Author,
			Message:  rec.Summary,
			Labels:   labels,
		}
		result, err := visitor(c)
		if err != nil {
			return err
		}
		if result == change.VisitTerminate {
			return nil
		}
	}
	return nil
}

type recordingReader struct {
	files map[string]string
}

func (r *recordingReader) ReadFile(path string) ([]byte, error) {
	content, ok := r.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

func (r *recordingReader) Glob(matcher *glob.Glob) ([]string, error) {
	var out []string
	for rel := range r.files {
		if matcher == nil || matcher.Matches(rel) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *recordingReader) CopyDestinationFiles(matcher *glob.Glob, dir string) error {
	for rel, content := range r.files {
		if matcher != nil && !matcher.Matches(rel) {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func snapshotTree(root string, matcher *glob.Glob) (map[string]string, error) {
	files, err := fileutil.ListFiles(root, matcher)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		out[rel] = string(content)
	}
	return out, nil
}

var (
	_ vcs.Destination = (*RecordingDestination)(nil)
	_ vcs.Writer      = (*recordingWriter)(nil)
)

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
