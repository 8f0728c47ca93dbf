// Package catalog provides the workflow registry backing name-based
// execution and sub-workflow calls.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/duraflow-go/flow"
)

// Catalog is an in-process, versioned workflow registry implementing
// flow.WorkflowCatalog. Workflows register under their name plus a
// version label; lookups without a version resolve to the most
// recently registered one.
//
// Safe for concurrent use, though registration normally happens once
// at startup.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string]map[string]*flow.Workflow // name -> version -> workflow
	latest   map[string]string                    // name -> latest version label
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		versions: make(map[string]map[string]*flow.Workflow),
		latest:   make(map[string]string),
	}
}

// Register adds a workflow under the given version label, making that
// version the default for unversioned lookups. Re-registering the same
// (name, version) replaces the entry.
func (c *Catalog) Register(wf *flow.Workflow, version string) {
	if version == "" {
		version = "v1"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	name := wf.Name()
	if c.versions[name] == nil {
		c.versions[name] = make(map[string]*flow.Workflow)
	}
	c.versions[name][version] = wf
	c.latest[name] = version
}

// Lookup implements flow.WorkflowCatalog, resolving the default
// version.
func (c *Catalog) Lookup(name string) (*flow.Workflow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	version, ok := c.latest[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", name, flow.ErrWorkflowNotFound)
	}
	return c.versions[name][version], nil
}

// LookupVersion resolves a specific registered version.
func (c *Catalog) LookupVersion(name, version string) (*flow.Workflow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wf, ok := c.versions[name][version]
	if !ok {
		return nil, fmt.Errorf("workflow %q version %q: %w", name, version, flow.ErrWorkflowNotFound)
	}
	return wf, nil
}

// Names returns the registered workflow names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.latest))
	for name := range c.latest {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the registered version labels for a workflow,
// sorted.
func (c *Catalog) Versions(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.versions[name]))
	for v := range c.versions[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
