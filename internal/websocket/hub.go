package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Hub maintains the auction rooms: for each auction ID, the set of viewer
// clients currently connected to it. Membership is in-memory only.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	writeTimeout time.Duration
}

// NewHub creates a new Hub. writeTimeout bounds every push to a single client.
func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		rooms:        make(map[string]map[*Client]struct{}),
		writeTimeout: writeTimeout,
	}
}

// WriteTimeout returns the per-client write bound.
func (h *Hub) WriteTimeout() time.Duration { return h.writeTimeout }

// Join registers client in the room for auctionID. Joining twice is a no-op.
func (h *Hub) Join(auctionID string, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[auctionID] = room
	}
	room[client] = struct{}{}
	size := len(room)
	h.mu.Unlock()

	log.Info().Str("auction_id", auctionID).Str("client_id", client.ID).Int("room_size", size).Msg("Client joined room")
}

// Leave removes client from the room for auctionID. It is safe to call for a
// client that was never joined or already left.
func (h *Hub) Leave(auctionID string, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := room[client]; !member {
		h.mu.Unlock()
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, auctionID)
	}
	size := len(room)
	h.mu.Unlock()

	log.Info().Str("auction_id", auctionID).Str("client_id", client.ID).Int("room_size", size).Msg("Client left room")
}

// RoomSize returns the number of clients in the room for auctionID.
func (h *Hub) RoomSize(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}

// Stats returns the number of non-empty rooms and connected clients.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		clients += len(room)
	}
	return len(h.rooms), clients
}

// SendTo delivers message to one client, dropping it from its room on failure.
func (h *Hub) SendTo(client *Client, message []byte) error {
	if err := client.Write(message, h.writeTimeout); err != nil {
		h.drop(client, err)
		return err
	}
	return nil
}

// BroadcastTo sends message to every client in the room for auctionID and
// returns the number of successful deliveries. Writes run in parallel and
// each is bounded by the hub's write timeout; the call returns once all of
// them have finished. Clients whose write fails are removed and closed.
func (h *Hub) BroadcastTo(auctionID string, message []byte) int {
	h.mu.RLock()
	room := h.rooms[auctionID]
	targets := make([]*Client, 0, len(room))
	for client := range room {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for _, client := range targets {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if err := c.Write(message, h.writeTimeout); err != nil {
				h.drop(c, err)
				return
			}
			delivered.Add(1)
		}(client)
	}
	wg.Wait()

	n := int(delivered.Load())
	log.Debug().Str("auction_id", auctionID).Int("delivered", n).Int("targets", len(targets)).Msg("Broadcast complete")
	return n
}

// CloseAll disconnects every client and empties all rooms.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var clients []*Client
	for _, room := range h.rooms {
		for client := range room {
			clients = append(clients, client)
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	log.Info().Int("clients", len(clients)).Msg("Closed all room connections")
}

func (h *Hub) drop(client *Client, err error) {
	log.Warn().Err(err).Str("auction_id", client.AuctionID).Str("client_id", client.ID).Msg("Dropping client after failed write")
	h.Leave(client.AuctionID, client)
	client.Close()
}
