// Package carimport bulk-imports a repository by fetching its CAR
// export, walking the MST inside it, and feeding every fm.teal.alpha.*
// record through the same ingestors the live firehose path uses.
package carimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/ipld/go-car"

	"tealindex/internal/ingesterrors"
)

// MemBlockstore is an in-memory blockstore satisfying the interface
// indigo's MST walker reads from. Adapted from the CAR *export*
// blockstore the PDS uses to serve com.atproto.sync.getRepo: same
// storage shape, populated by streaming a CAR in rather than by
// writing one out.
type MemBlockstore struct {
	blocks map[string]blocks.Block
}

func NewMemBlockstore() *MemBlockstore {
	return &MemBlockstore{blocks: make(map[string]blocks.Block, 64)}
}

func (m *MemBlockstore) Get(_ context.Context, c cid.Cid) (blocks.Block, error) {
	blk, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, &ipld.ErrNotFound{Cid: c}
	}
	return blk, nil
}

func (m *MemBlockstore) Put(_ context.Context, blk blocks.Block) error {
	m.blocks[blk.Cid().KeyString()] = blk
	return nil
}

func (m *MemBlockstore) Has(_ context.Context, c cid.Cid) (bool, error) {
	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}

func (m *MemBlockstore) GetSize(_ context.Context, c cid.Cid) (int, error) {
	blk, ok := m.blocks[c.KeyString()]
	if !ok {
		return 0, &ipld.ErrNotFound{Cid: c}
	}
	return len(blk.RawData()), nil
}

func (m *MemBlockstore) PutMany(_ context.Context, blks []blocks.Block) error {
	for _, blk := range blks {
		m.blocks[blk.Cid().KeyString()] = blk
	}
	return nil
}

func (m *MemBlockstore) AllKeysChan(_ context.Context) (<-chan cid.Cid, error) {
	ch := make(chan cid.Cid, len(m.blocks))
	for _, blk := range m.blocks {
		ch <- blk.Cid()
	}
	close(ch)
	return ch, nil
}

func (m *MemBlockstore) HashOnRead(_ bool) {}

func (m *MemBlockstore) DeleteBlock(_ context.Context, c cid.Cid) error {
	delete(m.blocks, c.KeyString())
	return nil
}

// ParsedCAR is a fully-streamed-in CAR: its root CIDs and a blockstore
// holding every block, ready for the MST walk.
type ParsedCAR struct {
	Roots      []cid.Cid
	Blockstore *MemBlockstore
}

// ParseCAR streams r block-by-block into an in-memory blockstore,
// never buffering the whole archive at once. An empty root-CID list is
// rejected as EmptyCar.
func ParseCAR(ctx context.Context, r io.Reader) (*ParsedCAR, error) {
	const op = "carimport.ParseCAR"

	cr, err := car.NewCarReader(r)
	if err != nil {
		// go-car refuses a header without roots before returning a reader.
		if strings.Contains(err.Error(), "no roots") {
			return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("EmptyCar: no root CIDs"))
		}
		return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("read car header: %w", err))
	}
	if len(cr.Header.Roots) == 0 {
		return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("EmptyCar: no root CIDs"))
	}

	bs := NewMemBlockstore()
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("read block: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := bs.Put(ctx, blk); err != nil {
			return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("store block: %w", err))
		}
	}

	return &ParsedCAR{Roots: cr.Header.Roots, Blockstore: bs}, nil
}

// FetchCAR retrieves a repository export from its PDS via
// com.atproto.sync.getRepo and parses it. pdsHost is a bare host (no
// scheme), the same form identity.Resolved.PDS carries.
// Require the response Content-Type to carry application/vnd.ipld.car.
func FetchCAR(ctx context.Context, client *http.Client, pdsHost, did, since string) (*ParsedCAR, error) {
	const op = "carimport.FetchCAR"

	query := url.Values{"did": {did}}
	if since != "" {
		query.Set("since", since)
	}
	endpoint := fmt.Sprintf("https://%s/xrpc/com.atproto.sync.getRepo?%s", pdsHost, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ingesterrors.New(ingesterrors.Transport, op, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, ingesterrors.New(ingesterrors.Transport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ingesterrors.New(ingesterrors.Transport, op, fmt.Errorf("getRepo: status %d", resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/vnd.ipld.car") {
		return nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("unexpected content-type %q", ct))
	}

	return ParseCAR(ctx, resp.Body)
}
