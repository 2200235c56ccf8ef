// Package firehose maintains a long-lived Jetstream subscription and
// delivers raw frames downstream; it does no parsing or storage of its
// own (that's internal/dispatch's job).
package firehose

import "time"

// DefaultEndpoint is Bluesky's public Jetstream endpoint, us-east region 2.
const DefaultEndpoint = "wss://jetstream2.us-east.bsky.network/subscribe"

// WantedCollections lists the NSIDs this indexer subscribes to. Anything
// else the firehose might carry is filtered server-side by Jetstream's
// wantedCollections parameter, so the dispatcher never sees it.
var WantedCollections = []string{
	"fm.teal.alpha.feed.play",
	"fm.teal.alpha.actor.profile",
	"fm.teal.alpha.actor.status",
}

// Config collects every Consumer tunable. None of these are environment
// variables (per the configuration-surface note in SPEC_FULL.md §9);
// callers build one with DefaultConfig and override fields as needed.
type Config struct {
	// Endpoint is the Jetstream websocket URL.
	Endpoint string
	// WantedCollections is the repeated wantedCollections query param.
	WantedCollections []string
	// WantedDIDs optionally restricts the subscription to specific
	// producer DIDs (repeated wantedDids query param).
	WantedDIDs []string
	// Compress requests zstd-with-dictionary compressed frames.
	Compress bool
	// ZstdDictionary is the shared dictionary Jetstream compresses
	// frames against. Required when Compress is true; nil disables
	// dictionary decoding transparently (frames are then assumed to be
	// plain zstd or uncompressed JSON, detected per frame).
	ZstdDictionary []byte
	// Bound is the capacity of the outbound message channel.
	Bound int
	// TimeoutSec is the maximum silence, in seconds, before the
	// connection forces a reconnect.
	TimeoutSec int
	// MaxRetryIntervalSec is the ceiling for exponential backoff.
	MaxRetryIntervalSec int
	// ConnectionSuccessTimeSec is the minimum uptime that qualifies a
	// connection as "successful," resetting backoff to its floor.
	ConnectionSuccessTimeSec int
}

// DefaultConfig mirrors the upstream Jetstream client's own defaults:
// a 65536-message channel, 40s silence timeout, 120s backoff ceiling,
// and a 60s success threshold.
func DefaultConfig() Config {
	return Config{
		Endpoint:                 DefaultEndpoint,
		WantedCollections:        append([]string(nil), WantedCollections...),
		Compress:                 true,
		Bound:                    65536,
		TimeoutSec:               40,
		MaxRetryIntervalSec:      120,
		ConnectionSuccessTimeSec: 60,
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c Config) maxRetryInterval() time.Duration {
	return time.Duration(c.MaxRetryIntervalSec) * time.Second
}

func (c Config) successThreshold() time.Duration {
	return time.Duration(c.ConnectionSuccessTimeSec) * time.Second
}
