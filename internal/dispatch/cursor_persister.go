package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tealindex/internal/cursorstore"
)

// CursorPersister periodically writes the dispatcher's in-memory
// cursor to durable storage so a restart resumes close to where it
// left off instead of replaying the whole firehose.
type CursorPersister struct {
	Cursor   *Cursor
	Store    *cursorstore.Store
	Interval time.Duration
}

func NewCursorPersister(cursor *Cursor, store *cursorstore.Store) *CursorPersister {
	return &CursorPersister{Cursor: cursor, Store: store, Interval: 60 * time.Second}
}

// Run persists the cursor every Interval until ctx is canceled, then
// performs one final persist so a clean shutdown never loses progress.
func (p *CursorPersister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.persist(); err != nil {
				log.Warn().Err(err).Msg("cursor_persister: final persist failed")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := p.persist(); err != nil {
				log.Warn().Err(err).Msg("cursor_persister: persist failed")
			}
		}
	}
}

func (p *CursorPersister) persist() error {
	return p.Store.Set(p.Cursor.Value())
}
