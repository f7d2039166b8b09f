package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/bidhall/internal/api/respond"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/isdelr/bidhall/internal/services"
	"github.com/rs/zerolog/log"
)

// AuctionHandler handles HTTP requests related to auctions.
type AuctionHandler struct {
	service services.AuctionServiceProvider
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(service services.AuctionServiceProvider) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// AuctionPayload defines the structure for listing a new auction.
type AuctionPayload struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=800"`
	StartingPrice float64 `json:"starting_price" validate:"gt=0"`
	DurationHours int     `json:"duration_hours" validate:"min=0,max=720"`
}

// GetAll handles the request to list every auction.
func (h *AuctionHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.service.ListAuctions(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, auctions)
}

// Get handles the request for one auction and its bids.
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.service.GetAuction(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, detail)
}

// Create handles the request to list a new auction owned by the caller.
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.ErrUnauthorized)
		return
	}

	var payload AuctionPayload
	if err := decode(w, r, &payload); err != nil {
		respond.Error(w, err)
		return
	}

	auction, err := h.service.CreateAuction(r.Context(), user.ID, models.AuctionInput{
		Title:         payload.Title,
		Description:   payload.Description,
		StartingPrice: payload.StartingPrice,
		DurationHours: payload.DurationHours,
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to create auction")
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, auction)
}
