// Package push maintains the persistent server-to-client event stream.
// It wraps a websocket connection with automatic reconnect and delivers
// decoded entity-change events plus connection lifecycle notifications.
// The stream carries no replay: consumers must reconcile missed events
// themselves after each reconnect (the entity synchronizer schedules a
// fresh pull snapshot).
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Reconnect backoff shape: start small, double, cap.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2
)

// Event is one entity-change notification from the stream. Data holds the
// raw entity payload; the synchronizer decodes it by event name.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Known event names emitted by the backend.
const (
	EventBinUpdate   = "bin:update"
	EventRouteUpdate = "route:update"
)

// conn is the minimal connection surface the channel needs. Satisfied by
// *websocket.Conn through wsConn; tests inject fakes via dialFunc.
type conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// wsConn adapts *websocket.Conn to the conn interface.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// Channel is a persistent duplex connection to the backend's event stream.
// Run drives the connect/read/reconnect loop until the context is
// canceled.
type Channel struct {
	url    func() string
	logger *slog.Logger

	// dialFunc and sleepFunc are injection points for tests.
	dialFunc  func(ctx context.Context, url string) (conn, error)
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewChannel creates a channel. url is re-evaluated before every dial
// attempt, so a hot-reloaded stream URL takes effect on the next
// reconnect without restarting the channel.
func NewChannel(url func() string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		url:       url,
		logger:    logger,
		dialFunc:  dial,
		sleepFunc: timeSleep,
	}
}

// dial establishes a real websocket connection.
func dial(ctx context.Context, url string) (conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("push: dialing %s: %w", url, err)
	}

	return &wsConn{c: ws}, nil
}

// Run connects and reads events until ctx is canceled, reconnecting with
// exponential backoff on any drop. Each established connection is
// announced on connects before events flow, so the consumer can schedule
// its recovery pull. Both sends block: events must not be silently
// dropped, and backpressure correctly slows the read loop. Returns nil on
// cancellation.
func (c *Channel) Run(ctx context.Context, events chan<- Event, connects chan<- struct{}) error {
	backoff := initialBackoff

	for {
		url := c.url()

		cn, err := c.dialFunc(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			c.logger.Warn("stream connect failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil
			}

			backoff = nextBackoff(backoff)

			continue
		}

		c.logger.Info("stream connected", slog.String("url", url))
		backoff = initialBackoff

		select {
		case connects <- struct{}{}:
		case <-ctx.Done():
			cn.Close()
			return nil
		}

		if err := c.readLoop(ctx, cn, events); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			c.logger.Warn("stream disconnected",
				slog.String("error", err.Error()),
			)
		}

		if ctx.Err() != nil {
			return nil
		}

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil
		}

		backoff = nextBackoff(backoff)
	}
}

// readLoop decodes frames from one connection until it drops. Malformed
// frames are logged and skipped — a single bad event must not take the
// stream down.
func (c *Channel) readLoop(ctx context.Context, cn conn, events chan<- Event) error {
	defer cn.Close()

	for {
		data, err := cn.Read(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			c.logger.Warn("dropping malformed stream frame",
				slog.Int("bytes", len(data)),
			)

			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// nextBackoff doubles the backoff up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	d *= backoffFactor
	if d > maxBackoff {
		d = maxBackoff
	}

	return d
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
