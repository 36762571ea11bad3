package artifacts

import (
	"sync"

	"framewright/internal/graph"
)

// Library is the append-only set of reference artifacts of a run.
type Library struct {
	mu    sync.RWMutex
	items []graph.ReferenceArtifact
}

// NewLibrary returns a library seeded with items.
func NewLibrary(items ...graph.ReferenceArtifact) *Library {
	return &Library{items: append([]graph.ReferenceArtifact(nil), items...)}
}

// Append adds artifacts in order.
func (l *Library) Append(items ...graph.ReferenceArtifact) {
	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()
}

// Snapshot returns a copy of the current contents.
func (l *Library) Snapshot() []graph.ReferenceArtifact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]graph.ReferenceArtifact(nil), l.items...)
}

// Len returns the number of artifacts.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Lookup returns the artifact with the given handle.
func (l *Library) Lookup(h graph.Handle) (graph.ReferenceArtifact, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if item.Handle == h {
			return item, true
		}
	}
	return graph.ReferenceArtifact{}, false
}
