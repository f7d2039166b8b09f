package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Viewers never send payloads; anything larger is a protocol violation.
	maxMessageSize = 512
)

// Conn is the subset of *gorilla.Conn a Client uses.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Client is one viewer connection watching one auction.
type Client struct {
	ID        string
	AuctionID string
	UserID    string // empty for anonymous viewers

	conn      Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn for the given auction room.
func NewClient(conn Conn, auctionID, userID string) *Client {
	return &Client{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		UserID:    userID,
		conn:      conn,
		done:      make(chan struct{}),
	}
}

// Write sends a text frame, failing if it cannot complete within timeout.
func (c *Client) Write(message []byte, timeout time.Duration) error {
	select {
	case <-c.done:
		return gorilla.ErrCloseSent
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(gorilla.TextMessage, message)
}

func (c *Client) ping(timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(gorilla.PingMessage, nil)
}

// Close closes the underlying connection once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed when the client has been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadPump drains the connection until the peer goes away. Viewers are not
// expected to send anything; reading is what surfaces disconnects and pongs.
func (c *Client) ReadPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client_id", c.ID).Str("auction_id", c.AuctionID).Msg("Unexpected websocket close")
			}
			return
		}
	}
}

// KeepAlive pings the peer until the client is closed or a ping fails.
func (c *Client) KeepAlive(timeout time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ping(timeout); err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Ping failed, closing client")
				c.Close()
				return
			}
		}
	}
}
