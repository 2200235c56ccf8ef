// Package ingest holds the record-specific ingestors (play, profile,
// status): idempotent upserts keyed by record URI, shared by the live
// dispatch path and the bulk CAR importer so the two produce
// indistinguishable database state for the same record.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
)

// Commit is the minimal commit shape every ingestor consumes. Both
// internal/dispatch (from the firehose) and internal/carimport (from an
// MST walk) construct one of these per record and hand it to the
// matching Ingestor — this is the seam that keeps the two ingestion
// paths sharing one implementation.
type Commit struct {
	DID        string
	Collection string
	RKey       string
	Operation  string // "create", "update", "delete"
	CID        string
	Record     json.RawMessage
}

// URI returns the commit's canonical record key.
func (c Commit) URI() string {
	return fmt.Sprintf("at://%s/%s/%s", c.DID, c.Collection, c.RKey)
}

// Ingestor handles create/update/delete commits for one collection.
type Ingestor interface {
	// Collection is the NSID this ingestor handles, used as the
	// dispatch registry key.
	Collection() string
	Ingest(ctx context.Context, commit Commit) error
}
