// Package pgxstore is the production backend for store.Store: a single
// pgxpool-backed Postgres connection pool, matching the record-store
// side of the system (§2's "record store" leaf dependency).
package pgxstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tealindex/internal/store"
)

// Store wraps a pgx connection pool with the Store contract.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at connString and bootstraps the schema.
func Open(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: parse config: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxstore: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxstore: bootstrap schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) UpsertArtist(ctx context.Context, mbid, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO artists (mbid, name) VALUES ($1, $2)
		ON CONFLICT (mbid) DO UPDATE SET name = EXCLUDED.name
	`, mbid, name)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert artist: %w", err)
	}
	return nil
}

func (s *Store) UpsertRelease(ctx context.Context, mbid, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO releases (mbid, name) VALUES ($1, $2)
		ON CONFLICT (mbid) DO UPDATE SET name = EXCLUDED.name
	`, mbid, name)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert release: %w", err)
	}
	return nil
}

func (s *Store) UpsertRecording(ctx context.Context, mbid, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recordings (mbid, name) VALUES ($1, $2)
		ON CONFLICT (mbid) DO UPDATE SET name = EXCLUDED.name
	`, mbid, name)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert recording: %w", err)
	}
	return nil
}

func (s *Store) UpsertPlay(ctx context.Context, p store.Play) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgxstore: begin upsert play: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO plays (
			uri, cid, did, rkey, track_name, isrc, duration_ms, has_duration,
			release_mbid, release_name, recording_mbid, played_time,
			submission_agent, service_domain, processed_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (uri) DO UPDATE SET
			cid = EXCLUDED.cid,
			track_name = EXCLUDED.track_name,
			isrc = EXCLUDED.isrc,
			duration_ms = EXCLUDED.duration_ms,
			has_duration = EXCLUDED.has_duration,
			release_mbid = EXCLUDED.release_mbid,
			release_name = EXCLUDED.release_name,
			recording_mbid = EXCLUDED.recording_mbid,
			played_time = EXCLUDED.played_time,
			submission_agent = EXCLUDED.submission_agent,
			service_domain = EXCLUDED.service_domain,
			processed_time = NOW()
	`, p.URI, p.CID, p.DID, p.RKey, p.TrackName, p.ISRC, p.DurationMs, p.HasDuration,
		p.ReleaseMBID, p.ReleaseName, p.RecordingMBID, p.PlayedTime, p.SubmissionAgent, p.ServiceDomain)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert play: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM play_to_artists WHERE play_uri = $1`, p.URI); err != nil {
		return fmt.Errorf("pgxstore: clear play artists: %w", err)
	}
	for _, a := range p.Artists {
		if _, err := tx.Exec(ctx, `
			INSERT INTO play_to_artists (play_uri, artist_mbid, artist_name) VALUES ($1, $2, $3)
		`, p.URI, a.MBID, a.Name); err != nil {
			return fmt.Errorf("pgxstore: insert play artist: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) DeletePlayByURI(ctx context.Context, uri string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgxstore: begin delete play: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM play_to_artists WHERE play_uri = $1`, uri); err != nil {
		return fmt.Errorf("pgxstore: delete play artists: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plays WHERE uri = $1`, uri); err != nil {
		return fmt.Errorf("pgxstore: delete play: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) UpsertProfile(ctx context.Context, p store.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (
			did, handle, display_name, description, description_facets,
			avatar_ref, banner_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (did) DO UPDATE SET
			handle = EXCLUDED.handle,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			description_facets = EXCLUDED.description_facets,
			avatar_ref = EXCLUDED.avatar_ref,
			banner_ref = EXCLUDED.banner_ref,
			created_at = EXCLUDED.created_at
	`, p.DID, p.Handle, p.DisplayName, p.Description, p.DescriptionFacets,
		p.AvatarRef, p.BannerRef, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, did string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("pgxstore: delete profile: %w", err)
	}
	return nil
}

func (s *Store) UpsertStatus(ctx context.Context, st store.Status) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO statuses (uri, cid, did, rkey, record, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uri) DO UPDATE SET
			cid = EXCLUDED.cid,
			record = EXCLUDED.record,
			indexed_at = EXCLUDED.indexed_at
	`, st.URI, st.CID, st.DID, st.RKey, st.Record, st.IndexedAt)
	if err != nil {
		return fmt.Errorf("pgxstore: upsert status: %w", err)
	}
	return nil
}

func (s *Store) DeleteStatusByURI(ctx context.Context, uri string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM statuses WHERE uri = $1`, uri)
	if err != nil {
		return fmt.Errorf("pgxstore: delete status: %w", err)
	}
	return nil
}
