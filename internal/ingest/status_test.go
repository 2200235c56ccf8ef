package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIngestCreateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ing := NewStatusIngestor(s)
	ctx := context.Background()

	commit := Commit{
		DID:        "did:plc:alice",
		Collection: statusCollection,
		RKey:       "self",
		Operation:  "create",
		CID:        "bafyabc",
		Record:     []byte(`{"text": "listening to Dreams"}`),
	}
	require.NoError(t, ing.Ingest(ctx, commit))

	var count int64
	s.DB().Raw(`SELECT COUNT(*) FROM status_rows WHERE uri = ?`, commit.URI()).Scan(&count)
	assert.Equal(t, int64(1), count)

	del := Commit{DID: "did:plc:alice", Collection: statusCollection, RKey: "self", Operation: "delete"}
	require.NoError(t, ing.Ingest(ctx, del))

	s.DB().Raw(`SELECT COUNT(*) FROM status_rows WHERE uri = ?`, commit.URI()).Scan(&count)
	assert.Equal(t, int64(0), count)
}

func TestStatusIngestUpdateOverwritesRecord(t *testing.T) {
	s := openTestStore(t)
	ing := NewStatusIngestor(s)
	ctx := context.Background()

	base := Commit{
		DID:        "did:plc:alice",
		Collection: statusCollection,
		RKey:       "self",
		CID:        "bafyabc",
		Record:     []byte(`{"text": "first"}`),
		Operation:  "create",
	}
	require.NoError(t, ing.Ingest(ctx, base))

	update := base
	update.Operation = "update"
	update.CID = "bafydef"
	update.Record = []byte(`{"text": "second"}`)
	require.NoError(t, ing.Ingest(ctx, update))

	var count int64
	var record string
	s.DB().Raw(`SELECT COUNT(*) FROM status_rows WHERE uri = ?`, base.URI()).Scan(&count)
	assert.Equal(t, int64(1), count)

	s.DB().Raw(`SELECT record FROM status_rows WHERE uri = ?`, base.URI()).Row().Scan(&record)
	assert.JSONEq(t, `{"text": "second"}`, record)
}
