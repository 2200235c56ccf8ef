package carimport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestCAR writes a CAR the way a repository export is laid out:
// header with the given roots, then every block length-prefixed.
func writeTestCAR(t *testing.T, roots []cid.Cid, blks []blocks.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, car.WriteHeader(&car.CarHeader{Roots: roots, Version: 1}, &buf))
	for _, blk := range blks {
		require.NoError(t, carutil.LdWrite(&buf, blk.Cid().Bytes(), blk.RawData()))
	}
	return buf.Bytes()
}

func TestParseCARStreamsAllBlocks(t *testing.T) {
	a, err := blocks.NewBlockWithCid([]byte("block a"), mustCID(t, []byte("block a")))
	require.NoError(t, err)
	b, err := blocks.NewBlockWithCid([]byte("block b"), mustCID(t, []byte("block b")))
	require.NoError(t, err)

	data := writeTestCAR(t, []cid.Cid{a.Cid()}, []blocks.Block{a, b})

	parsed, err := ParseCAR(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []cid.Cid{a.Cid()}, parsed.Roots)

	got, err := parsed.Blockstore.Get(context.Background(), a.Cid())
	require.NoError(t, err)
	assert.Equal(t, a.RawData(), got.RawData())

	got, err = parsed.Blockstore.Get(context.Background(), b.Cid())
	require.NoError(t, err)
	assert.Equal(t, b.RawData(), got.RawData())
}

func TestParseCARRejectsEmptyRootList(t *testing.T) {
	data := writeTestCAR(t, nil, nil)

	_, err := ParseCAR(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmptyCar")
}

func TestFetchCARRejectsWrongContentType(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	_, err := FetchCAR(context.Background(), srv.Client(), host, "did:plc:alice", "")
	require.Error(t, err)
}

func TestFetchCARParsesValidCARResponse(t *testing.T) {
	a, err := blocks.NewBlockWithCid([]byte("only block"), mustCID(t, []byte("only block")))
	require.NoError(t, err)
	data := writeTestCAR(t, []cid.Cid{a.Cid()}, []blocks.Block{a})

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "did=did%3Aplc%3Aalice")
		w.Header().Set("Content-Type", "application/vnd.ipld.car")
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, bytes.NewReader(data))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	parsed, err := FetchCAR(context.Background(), srv.Client(), host, "did:plc:alice", "")
	require.NoError(t, err)
	assert.Equal(t, []cid.Cid{a.Cid()}, parsed.Roots)
}
