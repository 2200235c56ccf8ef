package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tealindex/internal/ingesterrors"
	"tealindex/internal/metrics"
	"tealindex/internal/store"
)

const playCollection = "fm.teal.alpha.feed.play"

// ViewRefreshNotifier is notified after a play upsert so a deployment
// can schedule a refresh of its aggregate play-count materialized
// views. Computing and scheduling that refresh is out of scope here;
// this only fixes the hook's shape.
type ViewRefreshNotifier interface {
	NotifyPlayChanged(ctx context.Context, did string)
}

// NoopViewRefreshNotifier drops every notification.
type NoopViewRefreshNotifier struct{}

func (NoopViewRefreshNotifier) NotifyPlayChanged(context.Context, string) {}

// playArtistInput is one entry of the record's "artists" array.
type playArtistInput struct {
	ArtistName string  `json:"artistName"`
	ArtistMbID *string `json:"artistMbId,omitempty"`
}

// playRecord is the wire shape of a fm.teal.alpha.feed.play record.
// Artist attribution can arrive in either of two shapes (artists, or
// the parallel artistNames/artistMbIds arrays); at most one is present
// on any given record.
type playRecord struct {
	TrackName              string            `json:"trackName"`
	ISRC                   *string           `json:"isrc,omitempty"`
	Duration               *int64            `json:"duration,omitempty"`
	Artists                []playArtistInput `json:"artists,omitempty"`
	ArtistNames            []string          `json:"artistNames,omitempty"`
	ArtistMbIds            []string          `json:"artistMbIds,omitempty"`
	ReleaseName            *string           `json:"releaseName,omitempty"`
	ReleaseMbID            *string           `json:"releaseMbId,omitempty"`
	RecordingMbID          *string           `json:"recordingMbId,omitempty"`
	PlayedTime             *string           `json:"playedTime,omitempty"`
	SubmissionClientAgent  *string           `json:"submissionClientAgent,omitempty"`
	MusicServiceBaseDomain *string           `json:"musicServiceBaseDomain,omitempty"`
}

// PlayIngestor upserts fm.teal.alpha.feed.play records.
type PlayIngestor struct {
	Store    store.Store
	Notifier ViewRefreshNotifier
}

func NewPlayIngestor(s store.Store) *PlayIngestor {
	return &PlayIngestor{Store: s, Notifier: NoopViewRefreshNotifier{}}
}

func (p *PlayIngestor) Collection() string { return playCollection }

func (p *PlayIngestor) Ingest(ctx context.Context, commit Commit) error {
	const op = "ingest.Play"

	switch commit.Operation {
	case "create", "update":
		if commit.Record == nil || commit.CID == "" {
			return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("create/update commit missing record or cid"))
		}

		var rec playRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return ingesterrors.New(ingesterrors.Protocol, op, err)
		}

		play := normalizePlay(rec, commit)
		if err := p.writePlay(ctx, play); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(playCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		p.Notifier.NotifyPlayChanged(ctx, commit.DID)
		return nil

	case "delete":
		if err := p.Store.DeletePlayByURI(ctx, commit.URI()); err != nil {
			metrics.DispatchIngestErrorsTotal.WithLabelValues(playCollection).Inc()
			return ingesterrors.New(ingesterrors.StorageTransient, op, err)
		}
		return nil

	default:
		return ingesterrors.New(ingesterrors.Validation, op, fmt.Errorf("unknown operation %q", commit.Operation))
	}
}

func (p *PlayIngestor) writePlay(ctx context.Context, play store.Play) error {
	for _, a := range play.Artists {
		if err := p.Store.UpsertArtist(ctx, a.MBID, a.Name); err != nil {
			return fmt.Errorf("upsert artist %q: %w", a.Name, err)
		}
	}
	if play.ReleaseMBID != "" && play.ReleaseName != "" {
		if err := p.Store.UpsertRelease(ctx, play.ReleaseMBID, play.ReleaseName); err != nil {
			return fmt.Errorf("upsert release: %w", err)
		}
	}
	if play.RecordingMBID != "" {
		if err := p.Store.UpsertRecording(ctx, play.RecordingMBID, play.TrackName); err != nil {
			return fmt.Errorf("upsert recording: %w", err)
		}
	}
	return p.Store.UpsertPlay(ctx, play)
}

// normalizePlay applies the source's own MBID cleanup (empty string
// treated as absent) and artist-shape resolution, then derives the
// store.Play the upsert writes. Fuzzy artist/release/recording
// deduplication is explicitly out of scope; unmatched MBIDs are kept
// as-is and synthetic artists get a deterministic, non-colliding
// identity instead of a fuzzy-matched one.
func normalizePlay(rec playRecord, commit Commit) store.Play {
	play := store.Play{
		URI:             commit.URI(),
		CID:             commit.CID,
		DID:             commit.DID,
		RKey:            commit.RKey,
		TrackName:       rec.TrackName,
		ReleaseName:     derefOr(rec.ReleaseName, ""),
		SubmissionAgent: derefOr(rec.SubmissionClientAgent, ""),
		ServiceDomain:   derefOr(rec.MusicServiceBaseDomain, ""),
		PlayedTime:      parsePlayedTime(rec.PlayedTime),
	}

	if rec.ISRC != nil && *rec.ISRC != "" {
		play.ISRC = *rec.ISRC
	}
	if rec.Duration != nil {
		play.DurationMs = *rec.Duration
		play.HasDuration = true
	}
	if mbid := cleanMBID(rec.ReleaseMbID); mbid != "" {
		play.ReleaseMBID = mbid
	} else {
		play.ReleaseName = ""
	}
	if mbid := cleanMBID(rec.RecordingMbID); mbid != "" {
		play.RecordingMBID = mbid
	}

	play.Artists = resolveArtists(rec)
	return play
}

// resolveArtists implements the three accepted artist-input shapes, in
// priority order: the structured "artists" array; the parallel
// "artistNames"/"artistMbIds" arrays; and, when neither is present, a
// single synthetic fallback artist.
func resolveArtists(rec playRecord) []store.ArtistRef {
	if len(rec.Artists) > 0 {
		refs := make([]store.ArtistRef, 0, len(rec.Artists))
		for _, a := range rec.Artists {
			mbid := cleanMBID(a.ArtistMbID)
			if mbid == "" {
				mbid = DeriveSyntheticMBID(a.ArtistName)
			}
			refs = append(refs, store.ArtistRef{MBID: mbid, Name: a.ArtistName})
		}
		return refs
	}

	if len(rec.ArtistNames) > 0 {
		refs := make([]store.ArtistRef, 0, len(rec.ArtistNames))
		for i, name := range rec.ArtistNames {
			var mbid string
			if i < len(rec.ArtistMbIds) {
				mbid = rec.ArtistMbIds[i]
			}
			if mbid == "" {
				mbid = DeriveSyntheticMBID(name)
			}
			refs = append(refs, store.ArtistRef{MBID: mbid, Name: name})
		}
		return refs
	}

	name := fallbackArtistName(rec.TrackName)
	return []store.ArtistRef{{MBID: DeriveSyntheticMBID(name), Name: name}}
}

// fallbackArtistName matches the source's generate_fallback_artist:
// "Unknown Artist (<first 20 chars of track name>)".
func fallbackArtistName(trackName string) string {
	runes := []rune(trackName)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return fmt.Sprintf("Unknown Artist (%s)", string(runes))
}

// DeriveSyntheticMBID assigns a deterministic identity to an artist
// with no supplied MBID, so the same name always joins to the same
// artist row without a MusicBrainz lookup or fuzzy matching.
func DeriveSyntheticMBID(name string) string {
	sum := sha1.Sum([]byte("synthetic-artist:" + name))
	return "synthetic-" + hex.EncodeToString(sum[:])
}

func cleanMBID(mbid *string) string {
	if mbid == nil {
		return ""
	}
	return *mbid
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func parsePlayedTime(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		log.Warn().Str("playedTime", *raw).Err(err).Msg("ingest: unparseable playedTime, using now")
		return time.Now().UTC()
	}
	return t
}
