package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/backoff"
)

// State is the channel connection state exposed to observers.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateSubscribed   State = "SUBSCRIBED"
)

// SnapshotFetcher retrieves the authoritative inbox snapshot. Implemented by
// the API client.
type SnapshotFetcher interface {
	FetchNotifications(ctx context.Context, userID string) ([]Record, error)
}

// pushEnvelope is the frame shape delivered on the per-user topic: the same
// record shape as the snapshot, tagged as newly created or updated.
type pushEnvelope struct {
	Event string  `json:"event"`
	Data  Payload `json:"data"`
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// WSBaseURL is the websocket base, e.g. ws://host:port.
	WSBaseURL string
	// Token is the platform JWT, passed as a query param on upgrade.
	Token  string
	UserID string
	// Policy governs reconnect delays. Zero value falls back to
	// backoff.Default.
	Policy backoff.Policy
	// SnapshotInterval is the cadence of the periodic full-snapshot fetch
	// that keeps the inbox usable even if the live channel never connects.
	// Non-positive disables polling (resync still happens on every connect).
	SnapshotInterval time.Duration
}

// Channel maintains the live per-user notification subscription.
// Notifications are a best-effort enhancement: connection failures never
// surface as hard errors, they feed an unbounded capped-backoff retry loop,
// and every (re)connect triggers a snapshot resync so events missed while
// disconnected are recovered.
type Channel struct {
	cfg    ChannelConfig
	store  *Store
	fetch  SnapshotFetcher
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	onState func(State)
}

// NewChannel creates a Channel feeding store.
func NewChannel(cfg ChannelConfig, store *Store, fetch SnapshotFetcher, log zerolog.Logger) *Channel {
	if cfg.Policy == (backoff.Policy{}) {
		cfg.Policy = backoff.Default
	}
	return &Channel{
		cfg:    cfg,
		store:  store,
		fetch:  fetch,
		dialer: websocket.DefaultDialer,
		log: log.With().
			Str("component", "notification_channel").
			Str("user_id", cfg.UserID).
			Logger(),
		state: StateDisconnected,
	}
}

// OnStateChange registers an observer for connection state transitions.
// Register before Run.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// CurrentState returns the connection state.
func (c *Channel) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the subscription until ctx is cancelled. Call in a goroutine.
// After Run returns no further store mutation occurs from this channel.
func (c *Channel) Run(ctx context.Context) {
	if c.cfg.SnapshotInterval > 0 {
		go c.pollSnapshots(ctx)
	}

	attempt := 0
	for ctx.Err() == nil {
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Connect failed, retrying")
			if c.cfg.Policy.Sleep(ctx, attempt) != nil {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		c.setState(StateSubscribed)
		c.log.Info().Msg("Subscribed")

		// Recover anything delivered while we were away. At-least-once
		// delivery makes duplicates harmless: Upsert is idempotent per id.
		c.resync(ctx)

		c.readLoop(ctx, conn)
		conn.Close()
		c.setState(StateDisconnected)
		c.log.Info().Msg("Disconnected")
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := fmt.Sprintf("%s/topic/notifications/%s?token=%s",
		c.cfg.WSBaseURL, url.PathEscape(c.cfg.UserID), url.QueryEscape(c.cfg.Token))

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop consumes frames until the connection drops or ctx is cancelled.
// Malformed frames are dropped and logged; only transport errors end the
// loop and trigger a reconnect.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() // Unblocks ReadMessage.
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Channel) handleFrame(data []byte) {
	var env pushEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Msg("Dropping malformed frame")
		return
	}

	rec, err := env.Data.Record()
	if err != nil {
		c.log.Warn().Err(err).Str("event", env.Event).Msg("Dropping invalid record")
		return
	}

	c.store.Upsert(rec, OriginPushed)
	c.log.Debug().Str("id", rec.ID).Str("event", env.Event).Msg("Record applied")
}

// pollSnapshots keeps the inbox converging through fetches alone when the
// live channel is down for long stretches.
func (c *Channel) pollSnapshots(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()

	c.resync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.resync(ctx)
		}
	}
}

// resync fetches the authoritative snapshot and merges it. Fetch failures
// are transport faults: logged, never fatal.
func (c *Channel) resync(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	recs, err := c.fetch.FetchNotifications(fetchCtx, c.cfg.UserID)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("Snapshot fetch failed")
		}
		return
	}

	c.store.ApplySnapshot(recs)
	c.log.Debug().Int("count", len(recs)).Msg("Snapshot applied")
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	fn := c.onState
	c.mu.Unlock()

	if changed && fn != nil {
		fn(s)
	}
}
