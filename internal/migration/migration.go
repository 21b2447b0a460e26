// Package migration holds the migration value model, the per-load
// registry, and post-load validation.
package migration

import (
	"context"

	"github.com/copybara/copybara/internal/config"
)

// Migration is a named, fully-configured rule describing how to move
// revisions from one origin to one destination. Immutable after load.
type Migration interface {
	// Name returns the unique migration name
	Name() string
	// Description returns the human description
	Description() string
	// ModeName returns the mode tag (e.g. SQUASH)
	ModeName() string
	// ConfigFile returns the file this migration was defined in
	ConfigFile() config.File
	// OriginDescription returns the origin audit multimap
	OriginDescription() map[string][]string
	// DestinationDescription returns the destination audit multimap
	DestinationDescription() map[string][]string
	// Run executes the migration. sourceRefs may be empty to use the
	// configured default. The workflow runner is the sole caller site
	// that allocates workdir.
	Run(ctx context.Context, workdir string, sourceRefs []string) error
	// CheckReversible validates the transformation pipeline reverses
	// when the migration is configured as reversible
	CheckReversible() error
}
