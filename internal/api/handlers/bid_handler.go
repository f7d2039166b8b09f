package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/bidhall/internal/api/respond"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/services"
)

// BidHandler handles HTTP requests related to bids.
type BidHandler struct {
	bids     services.BidServiceProvider
	auctions services.AuctionServiceProvider
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(bids services.BidServiceProvider, auctions services.AuctionServiceProvider) *BidHandler {
	return &BidHandler{bids: bids, auctions: auctions}
}

// BidPayload defines the structure for placing a bid. Amount is checked by
// the bid rules so that a bad amount reports InvalidAmount.
type BidPayload struct {
	AuctionID string  `json:"auction_id" validate:"required"`
	Amount    float64 `json:"amount"`
}

// Create places a bid as the caller.
func (h *BidHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload BidPayload
	if err := decode(w, r, &payload); err != nil {
		respond.Error(w, err)
		return
	}

	// An anonymous caller reaches the bid rules, which reject it as Unauthenticated.
	user, _ := auth.UserFromContext(r.Context())
	bid, err := h.bids.PlaceBid(r.Context(), payload.AuctionID, user.ID, payload.Amount, time.Now())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, bid)
}

// ListForUser returns the bids placed by the user named in the path.
func (h *BidHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "me" {
		if user, ok := auth.UserFromContext(r.Context()); ok {
			id = user.ID
		}
	}

	bids, err := h.auctions.ListBidsForUser(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, bids)
}
