// Package sqlitestore is the test and offline/single-node backend for
// store.Store: an embedded, pure-Go SQLite database via modernc.org/sqlite,
// driven through gorm for schema migration and otelsql for traced
// driver calls.
package sqlitestore

import (
	"context"
	"fmt"

	"github.com/XSAM/otelsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"tealindex/internal/store"
)

// Store implements store.Store over an embedded SQLite database.
type Store struct {
	db *gorm.DB
}

// Open creates or opens a SQLite database at path (":memory:" for an
// ephemeral test database) and migrates the schema.
func Open(path string) (*Store, error) {
	sqlDB, err := otelsql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: gorm open: %w", err)
	}

	if err := gdb.AutoMigrate(
		&artistRow{}, &releaseRow{}, &recordingRow{},
		&playRow{}, &playArtistRow{},
		&profileRow{}, &statusRow{},
	); err != nil {
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}

	return &Store{db: gdb}, nil
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.Store = (*Store)(nil)

func (s *Store) withContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) UpsertArtist(ctx context.Context, mbid, name string) error {
	return s.withContext(ctx).Exec(`
		INSERT INTO artist_rows (mbid, name) VALUES (?, ?)
		ON CONFLICT(mbid) DO UPDATE SET name = excluded.name
	`, mbid, name).Error
}

func (s *Store) UpsertRelease(ctx context.Context, mbid, name string) error {
	return s.withContext(ctx).Exec(`
		INSERT INTO release_rows (mbid, name) VALUES (?, ?)
		ON CONFLICT(mbid) DO UPDATE SET name = excluded.name
	`, mbid, name).Error
}

func (s *Store) UpsertRecording(ctx context.Context, mbid, name string) error {
	return s.withContext(ctx).Exec(`
		INSERT INTO recording_rows (mbid, name) VALUES (?, ?)
		ON CONFLICT(mbid) DO UPDATE SET name = excluded.name
	`, mbid, name).Error
}

func (s *Store) UpsertPlay(ctx context.Context, p store.Play) error {
	return s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := playRow{
			URI:             p.URI,
			CID:             p.CID,
			DID:             p.DID,
			RKey:            p.RKey,
			TrackName:       p.TrackName,
			ISRC:            p.ISRC,
			DurationMs:      p.DurationMs,
			HasDuration:     p.HasDuration,
			ReleaseMBID:     p.ReleaseMBID,
			ReleaseName:     p.ReleaseName,
			RecordingMBID:   p.RecordingMBID,
			PlayedTime:      p.PlayedTime,
			SubmissionAgent: p.SubmissionAgent,
			ServiceDomain:   p.ServiceDomain,
		}
		if err := tx.Exec(`
			INSERT INTO play_rows (
				uri, cid, did, rkey, track_name, isrc, duration_ms, has_duration,
				release_mbid, release_name, recording_mbid, played_time,
				submission_agent, service_domain, processed_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(uri) DO UPDATE SET
				cid = excluded.cid,
				track_name = excluded.track_name,
				isrc = excluded.isrc,
				duration_ms = excluded.duration_ms,
				has_duration = excluded.has_duration,
				release_mbid = excluded.release_mbid,
				release_name = excluded.release_name,
				recording_mbid = excluded.recording_mbid,
				played_time = excluded.played_time,
				submission_agent = excluded.submission_agent,
				service_domain = excluded.service_domain,
				processed_time = CURRENT_TIMESTAMP
		`, row.URI, row.CID, row.DID, row.RKey, row.TrackName, row.ISRC,
			row.DurationMs, row.HasDuration, row.ReleaseMBID, row.ReleaseName,
			row.RecordingMBID, row.PlayedTime, row.SubmissionAgent, row.ServiceDomain,
		).Error; err != nil {
			return fmt.Errorf("upsert play: %w", err)
		}

		if err := tx.Exec(`DELETE FROM play_artist_rows WHERE play_uri = ?`, p.URI).Error; err != nil {
			return fmt.Errorf("clear play artists: %w", err)
		}
		for _, a := range p.Artists {
			if err := tx.Exec(`
				INSERT INTO play_artist_rows (play_uri, artist_mbid, artist_name) VALUES (?, ?, ?)
			`, p.URI, a.MBID, a.Name).Error; err != nil {
				return fmt.Errorf("insert play artist: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) DeletePlayByURI(ctx context.Context, uri string) error {
	return s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM play_artist_rows WHERE play_uri = ?`, uri).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM play_rows WHERE uri = ?`, uri).Error
	})
}

func (s *Store) UpsertProfile(ctx context.Context, p store.Profile) error {
	return s.withContext(ctx).Exec(`
		INSERT INTO profile_rows (
			did, handle, display_name, description, description_facets,
			avatar_ref, banner_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(did) DO UPDATE SET
			handle = excluded.handle,
			display_name = excluded.display_name,
			description = excluded.description,
			description_facets = excluded.description_facets,
			avatar_ref = excluded.avatar_ref,
			banner_ref = excluded.banner_ref,
			created_at = excluded.created_at
	`, p.DID, p.Handle, p.DisplayName, p.Description, p.DescriptionFacets,
		p.AvatarRef, p.BannerRef, p.CreatedAt).Error
}

func (s *Store) DeleteProfile(ctx context.Context, did string) error {
	return s.withContext(ctx).Exec(`DELETE FROM profile_rows WHERE did = ?`, did).Error
}

func (s *Store) UpsertStatus(ctx context.Context, st store.Status) error {
	return s.withContext(ctx).Exec(`
		INSERT INTO status_rows (uri, cid, did, rkey, record, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			cid = excluded.cid,
			record = excluded.record,
			indexed_at = excluded.indexed_at
	`, st.URI, st.CID, st.DID, st.RKey, st.Record, st.IndexedAt).Error
}

func (s *Store) DeleteStatusByURI(ctx context.Context, uri string) error {
	return s.withContext(ctx).Exec(`DELETE FROM status_rows WHERE uri = ?`, uri).Error
}

// DB exposes the underlying *gorm.DB for tests that want to assert on
// row state directly rather than through the Store interface.
func (s *Store) DB() *gorm.DB {
	return s.db
}
