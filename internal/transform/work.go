package transform

import (
	"github.com/copybara/copybara/internal/change"
	"github.com/copybara/copybara/internal/console"
)

// Metadata is the mutable destination change metadata a pipeline
// invocation builds up.
type Metadata struct {
	Message string
	Author  change.Author
	// Headers are extra labels appended to the destination message
	Headers *change.Labels
}

// DestinationReaderSupplier lazily opens read access to destination files
// at the baseline. Implemented by the runner; transformations that
// synthesize from existing destination content call it.
type DestinationReaderSupplier func() (DestinationReader, error)

// DestinationReader is the narrow read surface transformations get over
// the destination. Mirrors vcs.DestinationReader without importing it,
// so transformations do not depend on the backend contracts.
type DestinationReader interface {
	ReadFile(path string) ([]byte, error)
}

// Work is the mutable working context passed to each transformation
// during a single pipeline invocation. It is never shared across
// iterations.
type Work struct {
	// CheckoutDir is the absolute path of the workdir being transformed
	CheckoutDir string
	// Metadata for the destination change under construction
	Metadata Metadata
	// Changes visible to the transformation
	Changes change.Changes
	// Console sink for user-facing messages
	Console console.Console
	// MigrationName identifies the running migration
	MigrationName string
	// CurrentRevision is the origin revision checked out in CheckoutDir
	CurrentRevision change.Revision
	// DestinationReader lazily opens the destination at the baseline;
	// nil when the destination offers no read access
	DestinationReader DestinationReaderSupplier
}

// NewWork builds a Work for one pipeline invocation
func NewWork(checkoutDir, migrationName, message string, author change.Author,
	rev change.Revision, changes change.Changes, con console.Console) *Work {
	return &Work{
		CheckoutDir: checkoutDir,
		Metadata: Metadata{
			Message: message,
			Author:  author,
			Headers: change.NewLabels(),
		},
		Changes:         changes,
		Console:         con,
		MigrationName:   migrationName,
		CurrentRevision: rev,
	}
}

// AddLabel appends a header label to the destination message metadata
func (w *Work) AddLabel(name, value string) {
	w.Metadata.Headers.Add(name, value)
}

// SetMessage replaces the destination change message
func (w *Work) SetMessage(message string) {
	w.Metadata.Message = message
}

// SetAuthor replaces the destination change author
func (w *Work) SetAuthor(author change.Author) {
	w.Metadata.Author = author
}

// AllLabels returns labels usable for message templating: headers plus
// the labels of the current changes, newest values last.
func (w *Work) AllLabels() *change.Labels {
	out := w.Metadata.Headers.Copy()
	for _, c := range w.Changes.Current {
		if c.Labels == nil {
			continue
		}
		for _, name := range c.Labels.Names() {
			for _, v := range c.Labels.Get(name) {
				out.Add(name, v)
			}
		}
	}
	if w.CurrentRevision != nil {
		for _, name := range w.CurrentRevision.AssociatedLabels().Names() {
			for _, v := range w.CurrentRevision.AssociatedLabels().Get(name) {
				out.Add(name, v)
			}
		}
	}
	return out
}

// FullMessage renders the message plus header labels as the destination
// change summary.
func (w *Work) FullMessage() string {
	msg := w.Metadata.Message
	if w.Metadata.Headers.Len() == 0 {
		return msg
	}
	if msg != "" && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	return msg + "\n" + w.Metadata.Headers.String()
}
