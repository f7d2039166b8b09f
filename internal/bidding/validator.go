// Package bidding holds the bid acceptance rules and the per-auction
// serialization used by the ledger write path.
package bidding

import (
	"math"
	"time"

	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/shopspring/decimal"
)

// monetaryPrecision is the number of decimal places prices are compared at.
const monetaryPrecision int32 = 2

// Reason names why a bid was rejected.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "Unauthenticated"
	ReasonAuctionNotFound Reason = "AuctionNotFound"
	ReasonInvalidAmount   Reason = "InvalidAmount"
	ReasonAuctionClosed   Reason = "AuctionClosed"
	ReasonBidTooLow       Reason = "BidTooLow"
)

var (
	ErrUnauthenticated = apperr.New(apperr.KindAuth, string(ReasonUnauthenticated), "a verified bidder identity is required")
	ErrAuctionNotFound = apperr.New(apperr.KindNotFound, string(ReasonAuctionNotFound), "auction not found")
	ErrInvalidAmount   = apperr.New(apperr.KindValidation, string(ReasonInvalidAmount), "bid amount must be a positive number")
	ErrAuctionClosed   = apperr.New(apperr.KindConflict, string(ReasonAuctionClosed), "auction has already ended")
	ErrBidTooLow       = apperr.New(apperr.KindConflict, string(ReasonBidTooLow), "bid amount must be greater than the current price")
)

// AuctionState is the part of an auction a bid is judged against.
type AuctionState struct {
	Found        bool
	CurrentPrice float64
	EndsAt       time.Time
}

// Proposal is a bid as submitted.
type Proposal struct {
	BidderID    string
	Amount      float64
	SubmittedAt time.Time
}

// Decision is the outcome of Validate.
type Decision struct {
	Accepted bool
	Reason   Reason
}

// Err returns the sentinel error for a rejection, or nil when accepted.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonAuctionNotFound:
		return ErrAuctionNotFound
	case ReasonInvalidAmount:
		return ErrInvalidAmount
	case ReasonAuctionClosed:
		return ErrAuctionClosed
	case ReasonBidTooLow:
		return ErrBidTooLow
	}
	return nil
}

func reject(r Reason) Decision { return Decision{Reason: r} }

// Validate decides whether p may be accepted against state. It has no side effects.
func Validate(state AuctionState, p Proposal) Decision {
	if p.BidderID == "" {
		return reject(ReasonUnauthenticated)
	}
	if !state.Found {
		return reject(ReasonAuctionNotFound)
	}
	if p.Amount <= 0 || math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
		return reject(ReasonInvalidAmount)
	}
	if !p.SubmittedAt.Before(state.EndsAt) {
		return reject(ReasonAuctionClosed)
	}
	if !Exceeds(p.Amount, state.CurrentPrice) {
		return reject(ReasonBidTooLow)
	}
	return Decision{Accepted: true}
}

// Exceeds reports whether amount is strictly greater than price at monetary precision.
func Exceeds(amount, price float64) bool {
	a := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	p := decimal.NewFromFloat(price).Round(monetaryPrecision)
	return a.GreaterThan(p)
}

// Normalize rounds a price to monetary precision before it is stored.
func Normalize(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(monetaryPrecision).InexactFloat64()
}
