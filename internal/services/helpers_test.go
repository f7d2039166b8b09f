package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/bidhall/internal/database"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/isdelr/bidhall/internal/websocket"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *database.DB
	users    *UserService
	auctions *AuctionService
	bids     *BidService
	hub      *websocket.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	hub := websocket.NewHub(100 * time.Millisecond)
	auctions := NewAuctionService(db)
	return &fixture{
		db:       db,
		users:    NewUserService(db),
		auctions: auctions,
		bids:     NewBidService(db, auctions, hub),
		hub:      hub,
	}
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), name, name+"@example.com", "s3cret-pass")
	require.NoError(t, err)
	return u
}

func (f *fixture) auction(t *testing.T, owner models.User, price float64, hours int) models.Auction {
	t.Helper()
	a, err := f.auctions.CreateAuction(context.Background(), owner.ID, models.AuctionInput{
		Title:         "Lot by " + owner.Name,
		Description:   "test lot",
		StartingPrice: price,
		DurationHours: hours,
	})
	require.NoError(t, err)
	return a
}

// viewer joins a recording client to the auction's room.
func (f *fixture) viewer(t *testing.T, auctionID string) *recordingConn {
	t.Helper()
	conn := &recordingConn{}
	require.NoError(t, f.bids.Watch(context.Background(), auctionID, websocket.NewClient(conn, auctionID, "")))
	return conn
}

type pushed struct {
	Action  string                  `json:"action"`
	Payload websocket.AuctionUpdate `json:"payload"`
}

type recordingConn struct {
	mu     sync.Mutex
	frames []pushed
	fail   bool
	closed bool
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("use of closed network connection")
	}
	var p pushed
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.frames = append(c.frames, p)
	return nil
}

func (c *recordingConn) SetReadDeadline(time.Time) error { return nil }

func (c *recordingConn) SetReadLimit(int64) {}

func (c *recordingConn) SetPongHandler(func(string) error) {}

func (c *recordingConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("closed") }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = true
}

// Pushed returns frames with the given action, in arrival order.
func (c *recordingConn) Pushed(action string) []websocket.AuctionUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []websocket.AuctionUpdate
	for _, p := range c.frames {
		if p.Action == action {
			out = append(out, p.Payload)
		}
	}
	return out
}
