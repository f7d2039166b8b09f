package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/bidding"
	"github.com/isdelr/bidhall/internal/database"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 800
	maxDurationHours     = 24 * 30
)

const auctionColumns = `id, owner_id, title, description, starting_price, current_price,
	starts_at, duration_hours, ends_at, closed_notified, created_at`

const bidColumns = `b.id, b.auction_id, a.title, b.user_id, u.name, b.amount, b.placed_at`

const bidJoins = `FROM bids b
	JOIN users u ON u.id = b.user_id
	JOIN auctions a ON a.id = b.auction_id`

// AuctionServiceProvider defines the interface for auction services.
type AuctionServiceProvider interface {
	CreateAuction(ctx context.Context, ownerID string, input models.AuctionInput) (models.Auction, error)
	ListAuctions(ctx context.Context) ([]models.Auction, error)
	GetAuction(ctx context.Context, id string) (models.AuctionDetail, error)
	ListBidsForUser(ctx context.Context, userID string) ([]models.Bid, error)
}

// AuctionService provides the read side of the ledger and auction creation.
type AuctionService struct {
	db  *database.DB
	now func() time.Time
}

// NewAuctionService creates a new AuctionService.
func NewAuctionService(db *database.DB) *AuctionService {
	return &AuctionService{db: db, now: time.Now}
}

func validateAuctionInput(input *models.AuctionInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.DurationHours == 0 {
		input.DurationHours = models.DefaultDurationHours
	}

	switch {
	case input.Title == "":
		return apperr.Validation("title is required")
	case len(input.Title) > maxTitleLength:
		return apperr.Validation(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	case len(input.Description) > maxDescriptionLength:
		return apperr.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	case input.StartingPrice <= 0 || math.IsNaN(input.StartingPrice) || math.IsInf(input.StartingPrice, 0):
		return apperr.Validation("starting_price must be a positive number")
	case input.DurationHours < 0 || input.DurationHours > maxDurationHours:
		return apperr.Validation(fmt.Sprintf("duration_hours must be between 1 and %d", maxDurationHours))
	}
	return nil
}

// CreateAuction lists a new auction owned by ownerID. The current price
// starts at the starting price and bidding opens immediately.
func (s *AuctionService) CreateAuction(ctx context.Context, ownerID string, input models.AuctionInput) (models.Auction, error) {
	if ownerID == "" {
		return models.Auction{}, apperr.ErrUnauthorized
	}
	if err := validateAuctionInput(&input); err != nil {
		return models.Auction{}, err
	}

	now := s.now().UTC()
	price := bidding.Normalize(input.StartingPrice)
	auction := models.Auction{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Title:         input.Title,
		Description:   input.Description,
		StartingPrice: price,
		CurrentPrice:  price,
		StartsAt:      now,
		DurationHours: input.DurationHours,
		EndsAt:        now.Add(time.Duration(input.DurationHours) * time.Hour),
		CreatedAt:     now,
	}
	auction.Status = auction.StatusAt(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auctions (id, owner_id, title, description, starting_price, current_price,
			starts_at, duration_hours, ends_at, closed_notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		auction.ID, auction.OwnerID, auction.Title, auction.Description, auction.StartingPrice, auction.CurrentPrice,
		auction.StartsAt.UnixNano(), auction.DurationHours, auction.EndsAt.UnixNano(), false, auction.CreatedAt.UnixNano())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.Auction{}, apperr.ErrForeignKey
		}
		return models.Auction{}, fmt.Errorf("insert auction: %w", err)
	}

	log.Info().Str("auction_id", auction.ID).Str("owner_id", ownerID).Float64("starting_price", price).Msg("Auction created")
	return auction, nil
}

// ListAuctions returns every auction, newest first.
func (s *AuctionService) ListAuctions(ctx context.Context) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+auctionColumns+" FROM auctions ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()
	return s.scanAuctions(rows)
}

// GetAuction returns an auction and its bids in acceptance order.
func (s *AuctionService) GetAuction(ctx context.Context, id string) (models.AuctionDetail, error) {
	auction, err := s.getAuction(ctx, id)
	if err != nil {
		return models.AuctionDetail{}, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+bidColumns+" "+bidJoins+`
		WHERE b.auction_id = ? ORDER BY b.amount ASC, b.placed_at ASC`, id)
	if err != nil {
		return models.AuctionDetail{}, fmt.Errorf("list bids for auction %s: %w", id, err)
	}
	defer rows.Close()

	bids, err := scanBids(rows)
	if err != nil {
		return models.AuctionDetail{}, err
	}
	return models.AuctionDetail{Auction: auction, Bids: bids}, nil
}

func (s *AuctionService) getAuction(ctx context.Context, id string) (models.Auction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+auctionColumns+" FROM auctions WHERE id = ?", id)
	auction, err := s.scanAuction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Auction{}, bidding.ErrAuctionNotFound
		}
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}
	return auction, nil
}

// ListBidsForUser returns the bids placed by userID, most recent first.
func (s *AuctionService) ListBidsForUser(ctx context.Context, userID string) ([]models.Bid, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("check user %s: %w", userID, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+bidColumns+" "+bidJoins+`
		WHERE b.user_id = ? ORDER BY b.placed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bids for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanBids(rows)
}

// LastBid returns the highest accepted bid for an auction, or nil if none.
func (s *AuctionService) LastBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bidColumns+" "+bidJoins+`
		WHERE b.auction_id = ? ORDER BY b.amount DESC LIMIT 1`, auctionID)
	bid, err := scanBid(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last bid for auction %s: %w", auctionID, err)
	}
	return &bid, nil
}

// ListEndedUnnotified returns auctions that ended at or before now and whose
// closing has not been announced yet.
func (s *AuctionService) ListEndedUnnotified(ctx context.Context, now time.Time) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+auctionColumns+`
		FROM auctions WHERE ends_at <= ? AND closed_notified = ? ORDER BY ends_at ASC`, now.UnixNano(), false)
	if err != nil {
		return nil, fmt.Errorf("list ended auctions: %w", err)
	}
	defer rows.Close()
	return s.scanAuctions(rows)
}

// MarkClosedNotified flags the auction as announced. It reports false if
// another caller already did so.
func (s *AuctionService) MarkClosedNotified(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE auctions SET closed_notified = ? WHERE id = ? AND closed_notified = ?", true, id, false)
	if err != nil {
		return false, fmt.Errorf("mark auction %s closed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *AuctionService) scanAuctions(rows *sql.Rows) ([]models.Auction, error) {
	auctions := []models.Auction{}
	for rows.Next() {
		auction, err := s.scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (s *AuctionService) scanAuction(scanner interface{ Scan(...any) error }) (models.Auction, error) {
	var a models.Auction
	var startsAt, endsAt, createdAt int64
	err := scanner.Scan(
		&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.StartingPrice, &a.CurrentPrice,
		&startsAt, &a.DurationHours, &endsAt, &a.ClosedNotified, &createdAt,
	)
	if err != nil {
		return models.Auction{}, err
	}
	a.StartsAt = fromUnixNano(startsAt)
	a.EndsAt = fromUnixNano(endsAt)
	a.CreatedAt = fromUnixNano(createdAt)
	a.Status = a.StatusAt(s.now())
	return a, nil
}

func scanBids(rows *sql.Rows) ([]models.Bid, error) {
	bids := []models.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(scanner interface{ Scan(...any) error }) (models.Bid, error) {
	var b models.Bid
	var placedAt int64
	if err := scanner.Scan(&b.ID, &b.AuctionID, &b.AuctionTitle, &b.UserID, &b.BidderName, &b.Amount, &placedAt); err != nil {
		return models.Bid{}, err
	}
	b.PlacedAt = fromUnixNano(placedAt)
	return b, nil
}
