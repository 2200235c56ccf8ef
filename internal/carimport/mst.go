package carimport

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	indigorepo "github.com/bluesky-social/indigo/atproto/repo"
	"github.com/bluesky-social/indigo/atproto/repo/mst"
	"github.com/ipfs/go-cid"

	"tealindex/internal/ingesterrors"
)

const teamCollectionPrefix = "fm.teal.alpha."

// Leaf is one MST entry that falls under the collections this indexer
// cares about.
type Leaf struct {
	Collection string
	RKey       string
	ValueCID   cid.Cid
}

// WalkRepo decodes the commit reachable from one of the CAR's root
// CIDs, loads the MST it points at, and yields every leaf under
// fm.teal.alpha.* in the tree's canonical key order.
func WalkRepo(ctx context.Context, parsed *ParsedCAR) (did string, leaves []Leaf, err error) {
	const op = "carimport.WalkRepo"

	var commit *indigorepo.Commit
	for _, root := range parsed.Roots {
		blk, getErr := parsed.Blockstore.Get(ctx, root)
		if getErr != nil {
			continue
		}
		var c indigorepo.Commit
		if unmarshalErr := c.UnmarshalCBOR(bytes.NewReader(blk.RawData())); unmarshalErr == nil {
			commit = &c
			break
		}
	}
	if commit == nil {
		return "", nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("no decodable commit block among CAR roots"))
	}

	tree, err := mst.LoadTreeFromStore(ctx, parsed.Blockstore, commit.Data)
	if err != nil {
		return "", nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("load mst: %w", err))
	}

	err = tree.Walk(func(key []byte, val cid.Cid) error {
		if leaf, ok := leafFromKey(key, val); ok {
			leaves = append(leaves, leaf)
		}
		return nil
	})
	if err != nil {
		return "", nil, ingesterrors.New(ingesterrors.Protocol, op, fmt.Errorf("walk mst: %w", err))
	}

	return commit.DID, leaves, nil
}

// leafFromKey reports whether an MST key falls under a collection this
// indexer cares about, splitting it into collection/rkey on the final
// slash. MST keys outside fm.teal.alpha.* or without a slash are not
// ok and must be skipped by the caller.
func leafFromKey(key []byte, val cid.Cid) (Leaf, bool) {
	k := string(key)
	if !strings.HasPrefix(k, teamCollectionPrefix) {
		return Leaf{}, false
	}
	idx := strings.LastIndex(k, "/")
	if idx < 0 {
		return Leaf{}, false
	}
	return Leaf{Collection: k[:idx], RKey: k[idx+1:], ValueCID: val}, true
}
