// Package registry implements the in-memory process registry (C8): a
// slug -> record map with an atomic "insert if absent" operation, the
// way the teacher's pkg/storage providers guard a single resource space
// behind one mutex and typed lookup/insert/result methods.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/combust-labs/smartmob-agent/pkg/record"
	"github.com/hashicorp/go-hclog"
)

// ErrDuplicateSlug is returned by Insert when the slug already exists.
type ErrDuplicateSlug struct {
	Slug string
}

func (e *ErrDuplicateSlug) Error() string {
	return fmt.Sprintf("a process with slug %q already exists", e.Slug)
}

// Registry is the shared, concurrency-safe slug -> record map.
type Registry struct {
	logger hclog.Logger

	mu      sync.RWMutex
	records map[string]*record.Record
}

// New returns a new, empty Registry.
func New(logger hclog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		records: map[string]*record.Record{},
	}
}

// Insert atomically checks for an existing slug and inserts the record
// if absent. This is the CREATE path's "does slug exist?" + insertion
// atomicity requirement (spec invariant 1).
func (reg *Registry) Insert(r *record.Record) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.records[r.Slug]; exists {
		reg.logger.Debug("rejecting duplicate slug", "slug", r.Slug)
		return &ErrDuplicateSlug{Slug: r.Slug}
	}
	reg.records[r.Slug] = r
	reg.logger.Debug("inserted record", "slug", r.Slug)
	return nil
}

// Get returns the record for slug, and whether it was found.
func (reg *Registry) Get(slug string) (*record.Record, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, found := reg.records[slug]
	return r, found
}

// Delete removes slug from the registry, if present.
func (reg *Registry) Delete(slug string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.records, slug)
	reg.logger.Debug("removed record", "slug", slug)
}

// List returns a stable-ordered snapshot of all records (spec §3
// invariant 3: readers observe whatever is current at read time).
func (reg *Registry) List() []*record.Record {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*record.Record, 0, len(reg.records))
	for _, r := range reg.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
