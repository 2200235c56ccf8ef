package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tealindex/internal/identity"
)

func newTestResolver(t *testing.T, handle string) *identity.Resolver {
	t.Helper()
	plc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(identity.DidDocument{
			ID:          "did:plc:alice",
			AlsoKnownAs: []string{"at://" + handle},
			Service: []identity.ServiceEntry{
				{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example.com"},
			},
		})
	}))
	t.Cleanup(plc.Close)

	r := identity.NewResolver("https://unused.example.com")
	r.SetPLCDirectoryBase(plc.URL)
	return r
}

func TestProfileIngestCreateResolvesHandle(t *testing.T) {
	s := openTestStore(t)
	resolver := newTestResolver(t, "alice.example.com")
	p := NewProfileIngestor(s, resolver)
	ctx := context.Background()

	commit := Commit{
		DID:        "did:plc:alice",
		Collection: profileCollection,
		RKey:       "self",
		Operation:  "create",
		CID:        "bafyabc",
		Record: []byte(`{
			"displayName": "Alice",
			"description": "scrobbling since forever",
			"avatar": {"ref": "bafyavatar"}
		}`),
	}
	require.NoError(t, p.Ingest(ctx, commit))

	var handle, displayName string
	s.DB().Raw(`SELECT handle, display_name FROM profile_rows WHERE did = ?`, "did:plc:alice").Row().Scan(&handle, &displayName)
	assert.Equal(t, "alice.example.com", handle)
	assert.Equal(t, "Alice", displayName)
}

func TestProfileIngestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	resolver := newTestResolver(t, "alice.example.com")
	p := NewProfileIngestor(s, resolver)
	ctx := context.Background()

	commit := Commit{
		DID:        "did:plc:alice",
		Collection: profileCollection,
		RKey:       "self",
		Operation:  "create",
		CID:        "bafyabc",
		Record:     []byte(`{"displayName": "Alice"}`),
	}
	require.NoError(t, p.Ingest(ctx, commit))
	require.NoError(t, p.Ingest(ctx, commit))

	var count int64
	s.DB().Raw(`SELECT COUNT(*) FROM profile_rows WHERE did = ?`, "did:plc:alice").Scan(&count)
	assert.Equal(t, int64(1), count)
}

func TestProfileIngestDeleteByDID(t *testing.T) {
	s := openTestStore(t)
	resolver := newTestResolver(t, "alice.example.com")
	p := NewProfileIngestor(s, resolver)
	ctx := context.Background()

	create := Commit{
		DID:        "did:plc:alice",
		Collection: profileCollection,
		RKey:       "self",
		Operation:  "create",
		CID:        "bafyabc",
		Record:     []byte(`{"displayName": "Alice"}`),
	}
	require.NoError(t, p.Ingest(ctx, create))

	del := Commit{DID: "did:plc:alice", Collection: profileCollection, RKey: "self", Operation: "delete"}
	require.NoError(t, p.Ingest(ctx, del))

	var count int64
	s.DB().Raw(`SELECT COUNT(*) FROM profile_rows WHERE did = ?`, "did:plc:alice").Scan(&count)
	assert.Equal(t, int64(0), count)
}
