package ingest

import (
	"context"
	"fmt"
	"time"

	"tealindex/internal/ingesterrors"
	"tealindex/internal/metrics"
	"tealindex/internal/store"
)

const statusCollection = "fm.teal.alpha.actor.status"

// StatusIngestor upserts fm.teal.alpha.actor.status records. The record
// body beyond identity is opaque; it's stored verbatim for the app view
// to interpret.
type StatusIngestor struct {
	Store store.Store
}

func NewStatusIngestor(s store.Store) *StatusIngestor {
	return &StatusIngestor{Store: s}
}

func (s *StatusIngestor) Collection() string { return statusCollection }

func (s *StatusIngestor) Ingest(ctx context.Context, commit Commit) error {
	const op = "ingest.Status"

	switch commit.Operation {
	case "create", "update":
		if commit.Record == nil || commit.CID == "" {
			return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("create/update commit missing record or cid"))
		}

		status := store.Status{
			URI:       commit.URI(),
			CID:       commit.CID,
			DID:       commit.DID,
			RKey:      commit.RKey,
			Record:    commit.Record,
			IndexedAt: time.Now().UTC(),
		}
		if err := s.Store.UpsertStatus(ctx, status); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(statusCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		return nil

	case "delete":
		if err := s.Store.DeleteStatusByURI(ctx, commit.URI()); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(statusCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		return nil

	default:
		return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("unknown operation %q", commit.Operation))
	}
}
