// Package store defines the record-store abstraction the ingestors and
// the CAR importer write through, and the plain domain types that flow
// into it. Two backends implement Store: pgxstore (production,
// Postgres) and sqlitestore (tests and offline/single-node use).
package store

import (
	"context"
	"time"
)

// ArtistRef names one artist attributed to a play, either by the
// record's own MBID or, when none was supplied, by a deterministic
// synthetic identity derived from the artist name (see DeriveSyntheticMBID).
type ArtistRef struct {
	MBID string
	Name string
}

// Play is the normalized form of a fm.teal.alpha.feed.play record,
// after the ingestor's MBID cleanup and fallback-artist rules have run.
type Play struct {
	URI             string
	CID             string
	DID             string
	RKey            string
	TrackName       string
	ISRC            string
	DurationMs      int64
	HasDuration     bool
	ReleaseMBID     string
	ReleaseName     string
	RecordingMBID   string
	PlayedTime      time.Time
	SubmissionAgent string
	ServiceDomain   string
	Artists         []ArtistRef
}

// Profile is the normalized form of a fm.teal.alpha.actor.profile record.
type Profile struct {
	DID         string
	Handle      string
	DisplayName string
	Description string
	// DescriptionFacets carries the record's rich-text spans verbatim,
	// serialized as JSON; this store treats it as opaque.
	DescriptionFacets []byte
	AvatarRef         string
	BannerRef         string
	CreatedAt         time.Time
}

// Status is the normalized form of a fm.teal.alpha.actor.status record.
// Its record body beyond identity is opaque to the indexer.
type Status struct {
	URI       string
	CID       string
	DID       string
	RKey      string
	Record    []byte
	IndexedAt time.Time
}

// Store is the write surface every ingestor and the CAR importer share.
// Implementations must make every Upsert/Delete idempotent: replaying
// the same call twice must not duplicate rows or error.
type Store interface {
	// UpsertArtist ensures an artist row exists for mbid; plays join
	// against it by that mbid. Name may be updated in place on
	// conflict; the MBID, once assigned, is never rewritten.
	UpsertArtist(ctx context.Context, mbid, name string) error
	UpsertRelease(ctx context.Context, mbid, name string) error
	UpsertRecording(ctx context.Context, mbid, name string) error

	// UpsertPlay writes the play row and its artist join rows in one
	// logical unit, keyed by Play.URI.
	UpsertPlay(ctx context.Context, play Play) error
	DeletePlayByURI(ctx context.Context, uri string) error

	UpsertProfile(ctx context.Context, profile Profile) error
	DeleteProfile(ctx context.Context, did string) error

	UpsertStatus(ctx context.Context, status Status) error
	DeleteStatusByURI(ctx context.Context, uri string) error

	Close() error
}
