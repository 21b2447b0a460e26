package folder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/core"
	"github.com/copybara/copybara/internal/fileutil"
	"github.com/copybara/copybara/internal/glob"
	"github.com/copybara/copybara/internal/vcs"
)

// LedgerFile is the JSON file recording the destination's durable state:
// baseline, pending dry-runs and write history, keyed by rev-id label.
const LedgerFile = ".copybara-ledger.json"

// Destination writes transformed trees into a directory
type Destination struct {
	dir string
}

// NewDestination creates a folder destination at dir, creating it when
// missing.
func NewDestination(dir string) (*Destination, error) {
	if dir == "" {
		return nil, fmt.Errorf("folder destination requires a directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Destination{dir: abs}, nil
}

// Dir returns the destination directory
func (d *Destination) Dir() string { return d.dir }

// NewWriter implements vcs.Destination
func (d *Destination) NewWriter(ctx vcs.WriterContext) (vcs.Writer, error) {
	return &Writer{dest: d, ctx: ctx}, nil
}

// LabelNameWhenOrigin implements vcs.Destination
func (d *Destination) LabelNameWhenOrigin() string { return RevIDLabel }

// Describe implements vcs.Destination
func (d *Destination) Describe(destinationFiles *glob.Glob) map[string][]string {
	return map[string][]string{
		"type": {"folder.destination"},
		"path": {d.dir},
		"root": {destinationFiles.String()},
	}
}

// Writer commits one iteration's result into the destination directory
type Writer struct {
	dest *Destination
	ctx  vcs.WriterContext
}

func (w *Writer) ledgerPath() string {
	return filepath.Join(w.dest.dir, LedgerFile)
}

func (w *Writer) readLedger() (string, error) {
	content, err := os.ReadFile(w.ledgerPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", core.NewError(core.RepositoryError).
			WithOperation("reading destination ledger").
			WithCause(err).
			Transient().
			Build()
	}
	return string(content), nil
}

func (w *Writer) writeLedger(ledger string) error {
	if err := os.WriteFile(w.ledgerPath(), []byte(ledger), 0o644); err != nil {
		return core.NewError(core.RepositoryError).
			WithOperation("writing destination ledger").
			WithCause(err).
			Transient().
			Build()
	}
	return nil
}

// DestinationStatus implements vcs.Writer
func (w *Writer) DestinationStatus(ctx context.Context, dstFiles *glob.Glob, labelName string) (*vcs.DestinationStatus, error) {
	ledger, err := w.readLedger()
	if err != nil {
		return nil, err
	}
	if ledger == "" {
		return nil, nil
	}
	entry := gjson.Get(ledger, "labels."+escapeKey(labelName))
	if !entry.Exists() {
		return nil, nil
	}
	status := &vcs.DestinationStatus{Baseline: entry.Get("baseline").String()}
	for _, p := range entry.Get("pending").Array() {
		status.Pending = append(status.Pending, p.String())
	}
	return status, nil
}

// Write implements vcs.Writer. Writes are deduped by the rev-id label:
// re-running the same origin range against the same destination state
// yields no new change.
func (w *Writer) Write(ctx context.Context, result *vcs.TransformResult, dstFiles *glob.Glob, con console.Console) ([]vcs.DestinationEffect, error) {
	ledger, err := w.readLedger()
	if err != nil {
		return nil, err
	}

	labelKey := "labels." + escapeKey(result.RevIDLabel)
	recorded := gjson.Get(ledger, labelKey+".baseline").String()
	if recorded == result.RevID() && result.RevID() != "" {
		return nil, core.NewError(core.EmptyChange).
			WithOperation("writing to folder destination").
			WithCause(fmt.Errorf("revision %s is already recorded in %s", result.RevID(), w.dest.dir)).
			Build()
	}

	newHash, err := fileutil.TreeHash(result.Workdir, dstFiles)
	if err != nil {
		return nil, core.NewError(core.RepositoryError).
			WithOperation("hashing transformed tree").
			WithCause(err).
			Build()
	}
	if gjson.Get(ledger, labelKey+".tree_hash").String() == newHash {
		return nil, core.NewError(core.EmptyChange).
			WithOperation("writing to folder destination").
			WithCause(fmt.Errorf("transformed tree is identical to the destination content")).
			Build()
	}

	if w.ctx.DryRun {
		// Record the dry run as pending so later runs can surface it
		ledger, err = sjson.Set(ledger, labelKey+".pending.-1", result.RevID())
		if err != nil {
			return nil, core.Internalf("updating ledger: %v", err)
		}
		if err := w.writeLedger(ledger); err != nil {
			return nil, err
		}
		con.Info("Folder destination: dry run, would write %d change(s) to %s", len(result.Changes), w.dest.dir)
		return []vcs.DestinationEffect{vcs.NewNoopEffect(
			fmt.Sprintf("dry run: would write %s to %s", result.RevID(), w.dest.dir),
			result.Changes)}, nil
	}

	// Replace the destination slice with the transformed tree
	dstScope, err := glob.New(dstFiles.Include(), append(dstFiles.Exclude(), LedgerFile))
	if err != nil {
		return nil, core.Internalf("building destination scope: %v", err)
	}
	if err := fileutil.RemoveMatching(w.dest.dir, dstScope); err != nil {
		return nil, core.NewError(core.RepositoryError).
			WithOperation("clearing destination files").
			WithCause(err).
			Transient().
			Build()
	}
	if err := fileutil.CopyTree(result.Workdir, w.dest.dir, dstScope); err != nil {
		return nil, core.NewError(core.RepositoryError).
			WithOperation("copying transformed tree").
			WithCause(err).
			Transient().
			Build()
	}

	ledger, err = updateLedger(ledger, labelKey, result, newHash)
	if err != nil {
		return nil, err
	}
	if err := w.writeLedger(ledger); err != nil {
		return nil, err
	}

	return []vcs.DestinationEffect{vcs.NewCreatedEffect(
		firstLine(result.Summary),
		result.Changes,
		&vcs.DestinationRef{Type: "folder", ID: result.RevID(), URL: "file://" + w.dest.dir},
	)}, nil
}

func updateLedger(ledger, labelKey string, result *vcs.TransformResult, treeHash string) (string, error) {
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		ledger, err = sjson.Set(ledger, path, value)
	}
	set(labelKey+".baseline", result.RevID())
	set(labelKey+".tree_hash", treeHash)
	set(labelKey+".pending", []string{})
	set(labelKey+".history.-1", map[string]interface{}{
		"rev":     result.RevID(),
		"author":  result.Author.String(),
		"summary": firstLine(result.Summary),
		"time":    result.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return "", core.Internalf("updating ledger: %v", err)
	}
	return ledger, nil
}

// DestinationReader implements vcs.Writer
func (w *Writer) DestinationReader(ctx context.Context, baseline string, workdir string) (vcs.DestinationReader, error) {
	return &reader{dir: w.dest.dir}, nil
}

// VisitChanges implements vcs.Writer: walks the ledger history newest
// first.
func (w *Writer) VisitChanges(ctx context.Context, start string, visitor change.Visitor) error {
	ledger, err := w.readLedger()
	if err != nil {
		return err
	}
	var visitErr error
	gjson.Get(ledger, "labels").ForEach(func(_, entry gjson.Result) bool {
		history := entry.Get("history").Array()
		for i := len(history) - 1; i >= 0; i-- {
			h := history[i]
			author, _ := change.ParseAuthor(h.Get("author").String())
			ts, _ := time.Parse(time.RFC3339, h.Get("time").String())
			c := change.Change{
				Revision:  &Revision{id: h.Get("rev").String(), dir: w.dest.dir, timestamp: ts},
				Author:    author,
				Message:   h.Get("summary").String(),
				Timestamp: ts,
				Labels:    change.NewLabels(),
			}
			result, err := visitor(c)
			if err != nil {
				visitErr = err
				return false
			}
			if result == change.VisitTerminate {
				return false
			}
		}
		return true
	})
	return visitErr
}

// reader reads the current destination content
type reader struct {
	dir string
}

func (r *reader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(path)))
}

func (r *reader) Glob(matcher *glob.Glob) ([]string, error) {
	return fileutil.ListFiles(r.dir, matcher)
}

func (r *reader) CopyDestinationFiles(matcher *glob.Glob, dir string) error {
	return fileutil.CopyTree(r.dir, dir, matcher)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

var (
	_ vcs.Destination       = (*Destination)(nil)
	_ vcs.Writer            = (*Writer)(nil)
	_ vcs.DestinationReader = (*reader)(nil)
)

// escapeKey protects label names used as gjson/sjson path segments
func escapeKey(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '.' || key[i] == '*' || key[i] == '?' {
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
