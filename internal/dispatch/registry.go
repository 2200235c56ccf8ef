package dispatch

import "tealindex/internal/ingest"

// Registry maps a collection NSID to the ingestor that handles it.
// Routing is opt-in: a collection with no registered ingestor is
// silently skipped rather than treated as an error.
type Registry struct {
	ingestors map[string]ingest.Ingestor
}

func NewRegistry() *Registry {
	return &Registry{ingestors: make(map[string]ingest.Ingestor)}
}

// Register adds ing under its own Collection() key.
func (r *Registry) Register(ing ingest.Ingestor) {
	r.ingestors[ing.Collection()] = ing
}

// Lookup returns the ingestor registered for collection, if any.
func (r *Registry) Lookup(collection string) (ingest.Ingestor, bool) {
	ing, ok := r.ingestors[collection]
	return ing, ok
}
