package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/isdelr/bidhall/internal/api/respond"
	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/services"
	ws "github.com/isdelr/bidhall/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades room requests to WebSocket connections and
// keeps each connection in its auction's room until it goes away.
type WebSocketHandler struct {
	hub         *ws.Hub
	bids        services.BidServiceProvider
	auctions    services.AuctionServiceProvider
	requireAuth bool
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser origins are
// checked against allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(hub *ws.Hub, bids services.BidServiceProvider, auctions services.AuctionServiceProvider, requireAuth bool, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		bids:        bids,
		auctions:    auctions,
		requireAuth: requireAuth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Serve handles GET /rooms/{id}.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "id")

	// Unknown rooms and missing sessions are plain HTTP errors, before the upgrade.
	if _, err := h.auctions.GetAuction(r.Context(), auctionID); err != nil {
		respond.Error(w, err)
		return
	}
	user, authenticated := auth.UserFromContext(r.Context())
	if h.requireAuth && !authenticated {
		respond.Error(w, apperr.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(conn, auctionID, user.ID)
	defer func() {
		h.hub.Leave(auctionID, client)
		client.Close()
		log.Debug().Str("client_id", client.ID).Str("auction_id", auctionID).Msg("Viewer left room")
	}()

	if err := h.bids.Watch(r.Context(), auctionID, client); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("Failed to join room")
		return
	}
	log.Debug().Str("client_id", client.ID).Str("auction_id", auctionID).Str("user_id", user.ID).Msg("Viewer joined room")

	go client.KeepAlive(h.hub.WriteTimeout())
	client.ReadPump()
}
