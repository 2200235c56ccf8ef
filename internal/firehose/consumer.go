package firehose

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"tealindex/internal/metrics"
)

// Consumer maintains a long-lived Jetstream subscription, decompressing
// frames as needed and delivering the resulting JSON bytes to whatever
// reads from Messages(). It does no envelope parsing itself; that is
// internal/dispatch's job, keeping this package ignorant of the record
// schema it's carrying.
type Consumer struct {
	config     Config
	cursorFunc func() int64

	decoder *zstd.Decoder

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	messages  chan []byte
	reconnect chan struct{}
}

// NewConsumer builds a Consumer. cursorFunc is consulted on every
// (re)connect to resume from the last persisted cursor; it is owned by
// the dispatcher, not the consumer, so pass a closure over whatever
// backs that value (cmd/tealindex passes the dispatcher's in-memory
// dispatch.Cursor.Func).
func NewConsumer(cfg Config, cursorFunc func() int64) (*Consumer, error) {
	decoder, err := newDecoder(cfg.ZstdDictionary)
	if err != nil {
		return nil, fmt.Errorf("firehose: failed to create zstd decoder: %w", err)
	}
	return &Consumer{
		config:     cfg,
		cursorFunc: cursorFunc,
		decoder:    decoder,
		messages:   make(chan []byte, cfg.Bound),
		reconnect:  make(chan struct{}, 1),
	}, nil
}

// Messages returns the channel of decompressed JSON frames. Closed once
// Run returns.
func (c *Consumer) Messages() <-chan []byte {
	return c.messages
}

// IsConnected reports whether the consumer currently holds an open
// websocket connection.
func (c *Consumer) IsConnected() bool {
	return c.connected.Load()
}

// ForceReconnect requests an immediate reconnect, as if the silence
// timer had fired. Non-blocking: a pending request is coalesced.
func (c *Consumer) ForceReconnect() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// Run drives the connect/consume/backoff loop until ctx is cancelled.
// It always returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.messages)
	defer c.decoder.Close()

	retryInterval := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		metrics.FirehoseConnectAttemptsTotal.Inc()
		openFor, err := c.connectAndConsume(ctx)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", c.config.Endpoint).Msg("firehose: connection ended")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if openFor >= c.config.successThreshold() {
			retryInterval = time.Second
		}

		sleepFor := retryInterval
		if sleepFor > c.config.maxRetryInterval() {
			sleepFor = c.config.maxRetryInterval()
		}
		log.Info().Dur("sleep", sleepFor).Msg("firehose: reconnecting after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}

		retryInterval *= 2
		if retryInterval > c.config.maxRetryInterval() {
			retryInterval = c.config.maxRetryInterval()
		}
	}
}

// connectAndConsume opens one websocket connection and services it
// until it closes, the silence timeout fires, a reconnect is
// requested, or ctx is cancelled. It returns how long the connection
// stayed open, used by Run to decide whether backoff resets.
func (c *Consumer) connectAndConsume(ctx context.Context) (time.Duration, error) {
	wsURL, err := c.buildWebSocketURL()
	if err != nil {
		return 0, fmt.Errorf("failed to build websocket url: %w", err)
	}

	log.Info().Str("url", wsURL).Msg("firehose: connecting to jetstream")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)
	metrics.FirehoseConnectionState.Set(1)

	openedAt := time.Now()
	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.connMu.Unlock()
		c.connected.Store(false)
		metrics.FirehoseConnectionState.Set(0)
	}()

	type frame struct {
		kind int
		data []byte
		err  error
	}
	frames := make(chan frame, 1)
	go func() {
		for {
			kind, data, err := conn.ReadMessage()
			frames <- frame{kind, data, err}
			if err != nil {
				return
			}
		}
	}()

	timeout := time.NewTimer(c.config.timeout())
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return time.Since(openedAt), ctx.Err()

		case <-c.reconnect:
			metrics.FirehoseReconnectsTotal.WithLabelValues("forced").Inc()
			log.Info().Msg("firehose: forced reconnect")
			return time.Since(openedAt), nil

		case f := <-frames:
			if f.err != nil {
				metrics.FirehoseReconnectsTotal.WithLabelValues("stream_closed").Inc()
				return time.Since(openedAt), fmt.Errorf("read error: %w", f.err)
			}
			if !timeout.Stop() {
				<-timeout.C
			}
			timeout.Reset(c.config.timeout())

			if f.kind == websocket.BinaryMessage && !c.config.Compress {
				metrics.FirehoseFrameErrorsTotal.WithLabelValues("decompress").Inc()
				log.Warn().Msg("firehose: binary frame with compression disabled, dropping")
				continue
			}
			if err := c.deliver(f.data); err != nil {
				metrics.FirehoseFrameErrorsTotal.WithLabelValues("decompress").Inc()
				log.Warn().Err(err).Msg("firehose: failed to decompress frame, dropping")
				continue
			}
			metrics.FirehoseMessagesTotal.Inc()

		case <-timeout.C:
			// One last non-blocking poll for a frame that raced the timer.
			select {
			case f := <-frames:
				if f.err == nil && (f.kind != websocket.BinaryMessage || c.config.Compress) && c.deliver(f.data) == nil {
					metrics.FirehoseMessagesTotal.Inc()
				}
			default:
			}
			metrics.FirehoseReconnectsTotal.WithLabelValues("silence").Inc()
			log.Info().Dur("timeout", c.config.timeout()).Msg("firehose: no messages received, reconnecting")
			return time.Since(openedAt), nil
		}
	}
}

// deliver decompresses data if needed and pushes it onto the outbound
// channel, dropping it (and returning an error for logging/metrics)
// rather than blocking forever if the channel is full and ctx never
// cancels — the bounded channel is sized generously, so a full channel
// indicates the dispatcher has stalled, not ordinary backpressure.
func (c *Consumer) deliver(data []byte) error {
	if c.config.Compress && looksCompressed(data) {
		decompressed, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("zstd decode: %w", err)
		}
		data = decompressed
	}

	select {
	case c.messages <- data:
		return nil
	case <-time.After(time.Second):
		return fmt.Errorf("downstream channel full")
	}
}

func (c *Consumer) buildWebSocketURL() (string, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for _, coll := range c.config.WantedCollections {
		q.Add("wantedCollections", coll)
	}
	for _, did := range c.config.WantedDIDs {
		q.Add("wantedDids", did)
	}
	if c.cursorFunc != nil {
		if cursor := c.cursorFunc(); cursor > 0 {
			q.Set("cursor", strconv.FormatInt(cursor, 10))
		}
	}
	if c.config.Compress {
		q.Set("compress", "true")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
