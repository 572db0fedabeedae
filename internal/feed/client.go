package feed

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unoc/core-go/internal/engine"
	"unoc/core-go/internal/topology"
)

// Client consumes the websocket feed and publishes engine events in
// arrival order. One client serves one engine session; when the
// connection ends the session is over.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger
}

// Dial connects to the feed endpoint. A failed dial is a TransportError.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return &Client{conn: conn, log: log.With().Str("component", "feed_client").Logger()}, nil
}

// Run reads messages until the connection or context ends, publishing a
// FeedClosed event last so the reconciler always learns the session is
// over. Malformed messages are skipped with a warning; they must not
// take the session down.
func (c *Client) Run(ctx context.Context, bus *engine.Bus) error {
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			terr := &TransportError{Op: "read", Err: err}
			if ctx.Err() != nil {
				terr = &TransportError{Op: "read", Err: ctx.Err()}
			}
			bus.Publish(engine.FeedClosed{Err: terr})
			return terr
		}
		c.publish(bus, msg)
	}
}

func (c *Client) publish(bus *engine.Bus, msg Message) {
	switch msg.Kind {
	case KindSnapshot:
		bus.Publish(engine.SnapshotReceived{
			Devices: msg.Devices,
			Links:   msg.Links,
			Rings:   msg.Rings,
		})
	case KindPatch:
		device, link, err := msg.DecodePatch()
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed patch skipped")
			return
		}
		ev := engine.PatchReceived{}
		if device != nil {
			ev.Kind = topology.KindDevice
			ev.Device = device
		} else {
			ev.Kind = topology.KindLink
			ev.Link = link
		}
		bus.Publish(ev)
	case KindNotice:
		c.log.Info().Str("text", msg.Text).Msg("feed notice")
	default:
		c.log.Warn().Str("kind", string(msg.Kind)).Msg("unknown feed message kind skipped")
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	err := c.conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}
