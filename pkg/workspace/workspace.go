// Package workspace implements the deterministic per-process directory
// layout (C1), grounded on the teacher's pkg/storage/directory provider:
// a small root with fixed sibling subdirectories, created once at
// bootstrap and addressed by simple path joins thereafter.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	archivesDir = "archives"
	sourcesDir  = "sources"
	envsDir     = "envs"
)

// Layout is the workspace root and its three sibling subdirectories.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// Ensure creates the three workspace subdirectories if they don't exist.
// Per spec §4.1, failing to create them is fatal at startup.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.ArchivesDir(), l.SourcesDir(), l.EnvsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed creating workspace directory %q", dir)
		}
	}
	return nil
}

// ArchivesDir is where the fetcher (C2) writes raw archives.
func (l *Layout) ArchivesDir() string {
	return filepath.Join(l.Root, archivesDir)
}

// SourcesDir is where the extractor (C3) unpacks archives.
func (l *Layout) SourcesDir() string {
	return filepath.Join(l.Root, sourcesDir)
}

// EnvsDir is where the provisioner (C5) creates isolated runtimes.
func (l *Layout) EnvsDir() string {
	return filepath.Join(l.Root, envsDir)
}

// ArchivePath returns the archive file path for slug.
func (l *Layout) ArchivePath(slug string) string {
	return filepath.Join(l.ArchivesDir(), slug)
}

// SourcePath returns the unpack destination directory for slug.
func (l *Layout) SourcePath(slug string) string {
	return filepath.Join(l.SourcesDir(), slug)
}

// EnvPath returns the isolated-runtime directory for slug.
func (l *Layout) EnvPath(slug string) string {
	return filepath.Join(l.EnvsDir(), slug)
}

// String implements fmt.Stringer for log messages.
func (l *Layout) String() string {
	return fmt.Sprintf("workspace root=%s", l.Root)
}
