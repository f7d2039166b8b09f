package models

import "time"

// Bid is an accepted offer. Bids are append-only.
type Bid struct {
	ID           string    `json:"id"`
	AuctionID    string    `json:"auction_id"`
	AuctionTitle string    `json:"auction_title,omitempty"`
	UserID       string    `json:"user_id"`
	BidderName   string    `json:"bidder_name"`
	Amount       float64   `json:"amount"`
	PlacedAt     time.Time `json:"placed_at"`
}
