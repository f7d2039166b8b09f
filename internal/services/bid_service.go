package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/bidding"
	"github.com/isdelr/bidhall/internal/database"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/isdelr/bidhall/internal/websocket"
	"github.com/rs/zerolog/log"
)

// BidServiceProvider defines the interface for the bidding write path and
// the room subscriptions that observe it.
type BidServiceProvider interface {
	PlaceBid(ctx context.Context, auctionID, userID string, amount float64, now time.Time) (models.Bid, error)
	Watch(ctx context.Context, auctionID string, client *websocket.Client) error
	NotifyClosed(ctx context.Context, now time.Time) (int, error)
}

// BidService accepts bids and fans accepted state out to auction rooms.
// All state changes for one auction, and the pushes announcing them, happen
// while holding that auction's lock, so viewers see updates in commit order.
type BidService struct {
	db       *database.DB
	auctions *AuctionService
	hub      *websocket.Hub
	locks    *bidding.Locker
}

// NewBidService creates a new BidService.
func NewBidService(db *database.DB, auctions *AuctionService, hub *websocket.Hub) *BidService {
	return &BidService{
		db:       db,
		auctions: auctions,
		hub:      hub,
		locks:    bidding.NewLocker(),
	}
}

// PlaceBid validates and records a bid by userID on auctionID at time now.
// On success the auction's current price equals the bid amount and every
// viewer in the auction's room has been sent the new state (or dropped).
func (s *BidService) PlaceBid(ctx context.Context, auctionID, userID string, amount float64, now time.Time) (models.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	now = now.UTC()
	var bid models.Bid
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		state, err := loadAuctionState(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		bidderName, err := loadBidderName(ctx, tx, userID)
		if err != nil {
			return err
		}
		bidderID := userID
		if bidderName == "" {
			bidderID = ""
		}

		decision := bidding.Validate(state, bidding.Proposal{BidderID: bidderID, Amount: amount, SubmittedAt: now})
		if !decision.Accepted {
			return decision.Err()
		}

		bid = models.Bid{
			ID:         uuid.New().String(),
			AuctionID:  auctionID,
			UserID:     userID,
			BidderName: bidderName,
			Amount:     bidding.Normalize(amount),
			PlacedAt:   now,
		}

		// Compare-and-swap on the stored price; the auction lock already
		// serializes this process, the predicate guards the row itself.
		res, err := tx.ExecContext(ctx,
			"UPDATE auctions SET current_price = ? WHERE id = ? AND current_price < ? AND ends_at > ?",
			bid.Amount, auctionID, bid.Amount, now.UnixNano())
		if err != nil {
			return fmt.Errorf("update current price: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update current price: %w", err)
		} else if n != 1 {
			return bidding.ErrBidTooLow
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO bids (id, auction_id, user_id, amount, placed_at) VALUES (?, ?, ?, ?, ?)",
			bid.ID, bid.AuctionID, bid.UserID, bid.Amount, bid.PlacedAt.UnixNano())
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperr.ErrForeignKey
			}
			return fmt.Errorf("insert bid: %w", err)
		}

		return tx.QueryRowContext(ctx, "SELECT title FROM auctions WHERE id = ?", auctionID).Scan(&bid.AuctionTitle)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			log.Debug().Err(err).Str("auction_id", auctionID).Str("user_id", userID).Float64("amount", amount).Msg("Bid rejected")
		} else {
			log.Error().Err(err).Str("auction_id", auctionID).Str("user_id", userID).Msg("Failed to place bid")
		}
		return models.Bid{}, err
	}

	log.Info().Str("auction_id", auctionID).Str("bid_id", bid.ID).Str("user_id", userID).Float64("amount", bid.Amount).Msg("Bid accepted")

	s.broadcast(auctionID, websocket.ActionBidPlaced, websocket.AuctionUpdate{
		AuctionID:    auctionID,
		CurrentPrice: bid.Amount,
		LastBidder:   bid.BidderName,
		LastBidderID: bid.UserID,
		Timestamp:    bid.PlacedAt,
		Status:       models.AuctionStatusOpen,
	})
	return bid, nil
}

// Watch joins client to the auction's room and sends it the current state.
// Joining under the auction lock means the snapshot is never newer than a
// bid_placed message that follows it.
func (s *BidService) Watch(ctx context.Context, auctionID string, client *websocket.Client) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	detail, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	update := websocket.AuctionUpdate{
		AuctionID:    auctionID,
		CurrentPrice: detail.Auction.CurrentPrice,
		Timestamp:    time.Now().UTC(),
		Status:       detail.Auction.Status,
	}
	if n := len(detail.Bids); n > 0 {
		last := detail.Bids[n-1]
		update.LastBidder = last.BidderName
		update.LastBidderID = last.UserID
		update.Timestamp = last.PlacedAt
	}

	msg, err := websocket.Encode(websocket.ActionSnapshot, update)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.hub.Join(auctionID, client)
	return s.hub.SendTo(client, msg)
}

// NotifyClosed announces every auction that ended at or before now and has
// not been announced yet. It returns the number of auctions announced.
func (s *BidService) NotifyClosed(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.auctions.ListEndedUnnotified(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, auction := range ended {
		announced, err := s.announceClosed(ctx, auction)
		if err != nil {
			log.Error().Err(err).Str("auction_id", auction.ID).Msg("Failed to announce auction close")
			continue
		}
		if announced {
			count++
		}
	}
	return count, nil
}

func (s *BidService) announceClosed(ctx context.Context, auction models.Auction) (bool, error) {
	unlock := s.locks.Lock(auction.ID)
	defer unlock()

	marked, err := s.auctions.MarkClosedNotified(ctx, auction.ID)
	if err != nil || !marked {
		return false, err
	}

	update := websocket.AuctionUpdate{
		AuctionID:    auction.ID,
		CurrentPrice: auction.CurrentPrice,
		Timestamp:    auction.EndsAt,
		Status:       models.AuctionStatusClosed,
	}
	last, err := s.auctions.LastBid(ctx, auction.ID)
	if err != nil {
		return true, err
	}
	if last != nil {
		update.CurrentPrice = last.Amount
		update.LastBidder = last.BidderName
		update.LastBidderID = last.UserID
	}

	log.Info().Str("auction_id", auction.ID).Float64("final_price", update.CurrentPrice).Str("winner_id", update.LastBidderID).Msg("Auction closed")
	s.broadcast(auction.ID, websocket.ActionAuctionClosed, update)
	return true, nil
}

func (s *BidService) broadcast(auctionID, action string, update websocket.AuctionUpdate) {
	msg, err := websocket.Encode(action, update)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to encode room update")
		return
	}
	s.hub.BroadcastTo(auctionID, msg)
}

func loadAuctionState(ctx context.Context, tx *database.Tx, auctionID string) (bidding.AuctionState, error) {
	var price float64
	var endsAt int64
	err := tx.QueryRowContext(ctx, "SELECT current_price, ends_at FROM auctions WHERE id = ?", auctionID).Scan(&price, &endsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bidding.AuctionState{}, nil
		}
		return bidding.AuctionState{}, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return bidding.AuctionState{Found: true, CurrentPrice: price, EndsAt: fromUnixNano(endsAt)}, nil
}

// loadBidderName returns "" when userID does not name a registered user.
func loadBidderName(ctx context.Context, tx *database.Tx, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	var name string
	err := tx.QueryRowContext(ctx, "SELECT name FROM users WHERE id = ?", userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load bidder %s: %w", userID, err)
	}
	return name, nil
}
