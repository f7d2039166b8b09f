package websocket

import (
	"encoding/json"
	"time"
)

// Actions pushed to room members.
const (
	ActionSnapshot      = "snapshot"
	ActionBidPlaced     = "bid_placed"
	ActionAuctionClosed = "auction_closed"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// AuctionUpdate is the state pushed to viewers of an auction.
type AuctionUpdate struct {
	AuctionID    string    `json:"auction_id"`
	CurrentPrice float64   `json:"current_price"`
	LastBidder   string    `json:"last_bidder,omitempty"`
	LastBidderID string    `json:"last_bidder_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status,omitempty"`
}

// Encode marshals an action and its payload into a wire message.
func Encode(action string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Action: action, Payload: payload})
}
