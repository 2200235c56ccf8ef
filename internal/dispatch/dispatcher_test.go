package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tealindex/internal/ingest"
	"tealindex/internal/store/sqlitestore"
)

// rejectingVerifier refuses every record it is handed, so tests can
// confirm the dispatcher skips ingestion without regressing the cursor.
type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, string, cid.Cid, []byte) error {
	return errors.New("verification refused")
}

func realCID(t *testing.T, data []byte) string {
	t.Helper()
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, mh).String()
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *sqlitestore.Store) {
	t.Helper()
	s, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry := NewRegistry()
	registry.Register(ingest.NewPlayIngestor(s))

	d := NewDispatcher(registry, NewCursor(0))
	return d, s
}

// Scenario A — live play ingest.
func TestDispatchScenarioALivePlayIngest(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	msg := []byte(`{"did":"did:plc:alice","time_us":100,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":"bafyabc",
		 "record":{"trackName":"Hello","artists":[{"artistName":"Bob","artistMbId":"11111111-1111-1111-1111-111111111111"}],
		            "playedTime":"2024-05-01T00:00:00Z"}}}`)

	d.handleMessage(ctx, msg)

	var playCount, artistCount, joinCount int64
	s.DB().Raw(`SELECT COUNT(*) FROM play_rows WHERE uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Scan(&playCount)
	s.DB().Raw(`SELECT COUNT(*) FROM artist_rows WHERE mbid = ?`, "11111111-1111-1111-1111-111111111111").Scan(&artistCount)
	s.DB().Raw(`SELECT COUNT(*) FROM play_artist_rows WHERE play_uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Scan(&joinCount)

	assert.Equal(t, int64(1), playCount)
	assert.Equal(t, int64(1), artistCount)
	assert.Equal(t, int64(1), joinCount)
	assert.Equal(t, int64(100), d.Cursor.Value())
}

// Scenario B — cursor monotonicity: an older event after A must not
// regress the cursor; its commit is still upserted like any other.
func TestDispatchScenarioBCursorMonotonicity(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	first := []byte(`{"did":"did:plc:alice","time_us":100,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":"bafyabc",
		 "record":{"trackName":"Hello","artistNames":["Bob"],"playedTime":"2024-05-01T00:00:00Z"}}}`)
	d.handleMessage(ctx, first)
	require.Equal(t, int64(100), d.Cursor.Value())

	older := []byte(`{"did":"did:plc:alice","time_us":50,"kind":"commit",
		"commit":{"rev":"r0","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":"bafyold",
		 "record":{"trackName":"Stale","artistNames":["Bob"],"playedTime":"2024-04-01T00:00:00Z"}}}`)
	d.handleMessage(ctx, older)

	assert.Equal(t, int64(100), d.Cursor.Value(), "cursor must never regress")

	var trackName string
	s.DB().Raw(`SELECT track_name FROM play_rows WHERE uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Row().Scan(&trackName)
	assert.Equal(t, "Stale", trackName, "dispatcher applies whatever commit it receives regardless of time_us ordering of the record content itself")
}

// Scenario C — delete.
func TestDispatchScenarioCDelete(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	create := []byte(`{"did":"did:plc:alice","time_us":100,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":"bafyabc",
		 "record":{"trackName":"Hello","artistNames":["Bob"]}}}`)
	d.handleMessage(ctx, create)

	del := []byte(`{"did":"did:plc:alice","time_us":200,"kind":"commit",
		"commit":{"rev":"r2","operation":"delete","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":null,"record":null}}`)
	d.handleMessage(ctx, del)

	var playCount, joinCount int64
	s.DB().Raw(`SELECT COUNT(*) FROM play_rows WHERE uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Scan(&playCount)
	s.DB().Raw(`SELECT COUNT(*) FROM play_artist_rows WHERE play_uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Scan(&joinCount)
	assert.Equal(t, int64(0), playCount)
	assert.Equal(t, int64(0), joinCount)
}

// Scenario D — malformed commit: create with cid=null is rejected at
// decode, cursor unchanged.
func TestDispatchScenarioDMalformedCommitRejected(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	bad := []byte(`{"did":"did:plc:alice","time_us":300,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":null,
		 "record":{"trackName":"Hello"}}}`)
	d.handleMessage(ctx, bad)

	assert.Equal(t, int64(0), d.Cursor.Value(), "cursor must not advance on a rejected envelope")
}

func TestDispatchUnregisteredCollectionIsSkippedSilently(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	msg := []byte(`{"did":"did:plc:alice","time_us":10,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.actor.status",
		 "rkey":"self","cid":"bafyabc","record":{"text":"hi"}}}`)

	d.handleMessage(ctx, msg)
	assert.Equal(t, int64(10), d.Cursor.Value(), "cursor still advances even though no ingestor is registered for this collection")
}

func TestDispatchRejectsRecordFailingVerification(t *testing.T) {
	d, s := newTestDispatcher(t)
	d.Verifier = rejectingVerifier{}
	ctx := context.Background()

	recordCID := realCID(t, []byte("play-record-1"))
	msg := []byte(`{"did":"did:plc:alice","time_us":100,"kind":"commit",
		"commit":{"rev":"r1","operation":"create","collection":"fm.teal.alpha.feed.play",
		 "rkey":"3kxyz","cid":"` + recordCID + `",
		 "record":{"trackName":"Hello","artistNames":["Bob"],"playedTime":"2024-05-01T00:00:00Z"}}}`)

	d.handleMessage(ctx, msg)

	var playCount int64
	s.DB().Raw(`SELECT COUNT(*) FROM play_rows WHERE uri = ?`, "at://did:plc:alice/fm.teal.alpha.feed.play/3kxyz").Scan(&playCount)
	assert.Equal(t, int64(0), playCount, "a rejected record must not be ingested")
	assert.Equal(t, int64(100), d.Cursor.Value(), "the cursor still advances even though verification failed")
}

func TestDispatchRunStopsWhenChannelCloses(t *testing.T) {
	d, _ := newTestDispatcher(t)
	messages := make(chan []byte)
	close(messages)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := d.Run(ctx, messages)
	assert.NoError(t, err)
}
