package models

import "time"

const (
	AuctionStatusOpen   = "open"
	AuctionStatusClosed = "closed"
)

// DefaultDurationHours applies when an auction is created without a duration.
const DefaultDurationHours = 24

// Auction is a time-bounded listing with a rising current price.
type Auction struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartingPrice  float64   `json:"starting_price"`
	CurrentPrice   float64   `json:"current_price"`
	StartsAt       time.Time `json:"starts_at"`
	DurationHours  int       `json:"duration_hours"`
	EndsAt         time.Time `json:"ends_at"`
	Status         string    `json:"status"`
	ClosedNotified bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsOpenAt reports whether bids may still be accepted at t.
func (a Auction) IsOpenAt(t time.Time) bool {
	return t.Before(a.EndsAt)
}

// StatusAt derives the auction status at t.
func (a Auction) StatusAt(t time.Time) string {
	if a.IsOpenAt(t) {
		return AuctionStatusOpen
	}
	return AuctionStatusClosed
}

// AuctionInput carries the fields a seller provides when listing an auction.
type AuctionInput struct {
	Title         string
	Description   string
	StartingPrice float64
	DurationHours int
}

// AuctionDetail is an auction together with its bids in acceptance order.
type AuctionDetail struct {
	Auction Auction `json:"auction"`
	Bids    []Bid   `json:"bids"`
}
