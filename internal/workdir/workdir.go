// Package workdir allocates and recycles the scratch directories a
// migration run checks origin revisions into.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Manager owns a root scratch directory and hands out per-iteration
// workdirs under it. Each workdir is owned exclusively by one iteration;
// allocation itself is safe for concurrent use.
type Manager struct {
	root    string
	log     hclog.Logger
	mu      sync.Mutex
	counter int
	reuse   bool
}

// NewManager creates a manager rooted at root. When root is empty a fresh
// temporary directory is created. With reuse set, NewWorkdir recycles one
// directory between iterations instead of allocating new ones.
func NewManager(root string, reuse bool, log hclog.Logger) (*Manager, error) {
	if root == "" {
		tmp, err := os.MkdirTemp("", "copybara-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
		root = tmp
	} else {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to absolutize scratch root: %w", err)
		}
		root = abs
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
	}
	return &Manager{root: root, reuse: reuse, log: log}, nil
}

// Root returns the absolute scratch root
func (m *Manager) Root() string {
	return m.root
}

// NewWorkdir allocates a clean workdir for one iteration. The returned
// path is always absolute.
func (m *Manager) NewWorkdir(name string) (string, error) {
	var dir string
	if m.reuse {
		dir = filepath.Join(m.root, name)
	} else {
		m.mu.Lock()
		m.counter++
		dir = filepath.Join(m.root, fmt.Sprintf("%s-%d", name, m.counter))
		m.mu.Unlock()
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clean workdir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workdir %s: %w", dir, err)
	}
	m.log.Debug("Allocated workdir", "path", dir)
	return dir, nil
}

// Release destroys a workdir after its iteration completes
func (m *Manager) Release(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.log.Warn("Failed to remove workdir", "path", dir, "error", err)
		return
	}
	m.log.Debug("Released workdir", "path", dir)
}

// Close removes the scratch root and everything under it
func (m *Manager) Close() error {
	return os.RemoveAll(m.root)
}
