package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tealindex/internal/identity"
	"tealindex/internal/ingesterrors"
	"tealindex/internal/metrics"
	"tealindex/internal/store"
)

const profileCollection = "fm.teal.alpha.actor.profile"

type blobRef struct {
	Ref string `json:"ref"`
}

type profileRecord struct {
	DisplayName       *string         `json:"displayName,omitempty"`
	Description       *string         `json:"description,omitempty"`
	DescriptionFacets json.RawMessage `json:"descriptionFacets,omitempty"`
	Avatar            *blobRef        `json:"avatar,omitempty"`
	Banner            *blobRef        `json:"banner,omitempty"`
	CreatedAt         *string         `json:"createdAt,omitempty"`
}

// ProfileIngestor upserts fm.teal.alpha.actor.profile records, keyed by
// DID rather than record URI: a repo has at most one profile record, at
// the well-known rkey "self".
type ProfileIngestor struct {
	Store    store.Store
	Resolver *identity.Resolver
}

func NewProfileIngestor(s store.Store, resolver *identity.Resolver) *ProfileIngestor {
	return &ProfileIngestor{Store: s, Resolver: resolver}
}

func (p *ProfileIngestor) Collection() string { return profileCollection }

func (p *ProfileIngestor) Ingest(ctx context.Context, commit Commit) error {
	const op = "ingest.Profile"

	switch commit.Operation {
	case "create", "update":
		if commit.Record == nil || commit.CID == "" {
			return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("create/update commit missing record or cid"))
		}

		var rec profileRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return ingesterrors.New(ingesterrors.Protocol, op, err)
		}

		resolved, err := p.Resolver.ResolveIdentity(ctx, commit.DID)
		if err != nil {
			return ingesterrors.New(ingesterrors.Resolve, op, err)
		}

		profile := store.Profile{
			DID:               commit.DID,
			Handle:            resolved.Handle(),
			DisplayName:       derefOr(rec.DisplayName, ""),
			Description:       derefOr(rec.Description, ""),
			DescriptionFacets: rec.DescriptionFacets,
			AvatarRef:         blobID(rec.Avatar),
			BannerRef:         blobID(rec.Banner),
			CreatedAt:         parseCreatedAt(rec.CreatedAt),
		}

		if err := p.Store.UpsertProfile(ctx, profile); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(profileCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		return nil

	case "delete":
		if err := p.Store.DeleteProfile(ctx, commit.DID); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(profileCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		return nil

	default:
		return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("unknown operation %q", commit.Operation))
	}
}

func blobID(b *blobRef) string {
	if b == nil {
		return ""
	}
	return b.Ref
}

func parseCreatedAt(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
