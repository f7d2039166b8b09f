package services

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/bidhall/internal/bidding"
	"github.com/isdelr/bidhall/internal/models"
	"github.com/isdelr/bidhall/internal/websocket"
	"github.com/stretchr/testify/require"
)

func TestBidService_AuctionWalkthrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Now().UTC().Truncate(time.Second)
	f.auctions.now = func() time.Time { return start }

	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	lot := f.auction(t, seller, 100.0, 1)

	bid, err := f.bids.PlaceBid(ctx, lot.ID, alice.ID, 120.0, start.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 120.0, bid.Amount)
	require.Equal(t, "alice", bid.BidderName)
	require.Equal(t, lot.Title, bid.AuctionTitle)

	_, err = f.bids.PlaceBid(ctx, lot.ID, bob.ID, 110.0, start.Add(2*time.Minute))
	require.ErrorIs(t, err, bidding.ErrBidTooLow)

	_, err = f.bids.PlaceBid(ctx, lot.ID, alice.ID, 150.0, start.Add(61*time.Minute))
	require.ErrorIs(t, err, bidding.ErrAuctionClosed)

	detail, err := f.auctions.GetAuction(ctx, lot.ID)
	require.NoError(t, err)
	require.Equal(t, 120.0, detail.Auction.CurrentPrice)
	require.Len(t, detail.Bids, 1)
	require.Equal(t, alice.ID, detail.Bids[0].UserID)
}

func TestBidService_PlaceBid_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	lot := f.auction(t, seller, 100, 1)
	now := time.Now()

	tests := []struct {
		name      string
		auctionID string
		userID    string
		amount    float64
		at        time.Time
		want      error
	}{
		{"anonymous", lot.ID, "", 200, now, bidding.ErrUnauthenticated},
		{"unknown user", lot.ID, uuid.NewString(), 200, now, bidding.ErrUnauthenticated},
		{"unknown auction", uuid.NewString(), alice.ID, 200, now, bidding.ErrAuctionNotFound},
		{"zero amount", lot.ID, alice.ID, 0, now, bidding.ErrInvalidAmount},
		{"negative amount", lot.ID, alice.ID, -1, now, bidding.ErrInvalidAmount},
		{"equal to current", lot.ID, alice.ID, 100, now, bidding.ErrBidTooLow},
		{"below at two decimals", lot.ID, alice.ID, 100.004, now, bidding.ErrBidTooLow},
		{"at end instant", lot.ID, alice.ID, 200, lot.EndsAt, bidding.ErrAuctionClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.bids.PlaceBid(ctx, tc.auctionID, tc.userID, tc.amount, tc.at)
			require.ErrorIs(t, err, tc.want)
		})
	}

	detail, err := f.auctions.GetAuction(ctx, lot.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, detail.Auction.CurrentPrice, "rejected bids must not change the price")
	require.Empty(t, detail.Bids)
}

func TestBidService_AcceptedBidsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	bidders := []models.User{f.user(t, "a"), f.user(t, "b"), f.user(t, "c")}
	lot := f.auction(t, seller, 10, 1)
	viewer := f.viewer(t, lot.ID)

	rng := rand.New(rand.NewSource(7))
	accepted := 0
	for i := 0; i < 60; i++ {
		amount := 10 + float64(rng.Intn(5000))/100
		if _, err := f.bids.PlaceBid(ctx, lot.ID, bidders[i%len(bidders)].ID, amount, time.Now()); err == nil {
			accepted++
		}
	}

	detail, err := f.auctions.GetAuction(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, detail.Bids, accepted)
	for i := 1; i < len(detail.Bids); i++ {
		require.Greater(t, detail.Bids[i].Amount, detail.Bids[i-1].Amount)
		require.False(t, detail.Bids[i].PlacedAt.Before(detail.Bids[i-1].PlacedAt))
	}

	updates := viewer.Pushed(websocket.ActionBidPlaced)
	require.Len(t, updates, accepted)
	if accepted > 0 {
		require.Equal(t, detail.Auction.CurrentPrice, updates[len(updates)-1].CurrentPrice)
	}
}

func TestBidService_ConcurrentEqualBids(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	lot := f.auction(t, seller, 100, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, bidder := range []models.User{alice, bob} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.bids.PlaceBid(ctx, lot.ID, userID, 120, time.Now())
		}(i, bidder.ID)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, bidding.ErrBidTooLow)
	}
	require.Equal(t, 1, accepted)

	detail, err := f.auctions.GetAuction(ctx, lot.ID)
	require.NoError(t, err)
	require.Equal(t, 120.0, detail.Auction.CurrentPrice)
	require.Len(t, detail.Bids, 1)
}

func TestBidService_ConcurrentBidsBroadcastInCommitOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	lot := f.auction(t, seller, 1, 1)
	viewers := []*recordingConn{f.viewer(t, lot.ID), f.viewer(t, lot.ID)}

	bidders := make([]models.User, 8)
	for i := range bidders {
		bidders[i] = f.user(t, uuid.NewString()[:8])
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i, bidder := range bidders {
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(userID string, amount float64) {
				defer wg.Done()
				if _, err := f.bids.PlaceBid(ctx, lot.ID, userID, amount, time.Now()); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}(bidder.ID, float64(2+i*10+j))
		}
	}
	wg.Wait()

	detail, err := f.auctions.GetAuction(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, detail.Bids, accepted)

	for _, v := range viewers {
		updates := v.Pushed(websocket.ActionBidPlaced)
		require.Len(t, updates, accepted, "one push per accepted bid")
		for i := range updates {
			require.Equal(t, detail.Bids[i].Amount, updates[i].CurrentPrice, "pushes follow commit order")
			require.Equal(t, detail.Bids[i].UserID, updates[i].LastBidderID)
		}
	}
}

func TestBidService_DeadViewerIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	lot := f.auction(t, seller, 100, 1)

	healthy := f.viewer(t, lot.ID)
	dead := f.viewer(t, lot.ID)
	require.Equal(t, 2, f.hub.RoomSize(lot.ID))
	dead.Disconnect()

	_, err := f.bids.PlaceBid(ctx, lot.ID, alice.ID, 101, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, f.hub.RoomSize(lot.ID))

	_, err = f.bids.PlaceBid(ctx, lot.ID, alice.ID, 102, time.Now())
	require.NoError(t, err)

	require.Len(t, healthy.Pushed(websocket.ActionBidPlaced), 2)
	require.Empty(t, dead.Pushed(websocket.ActionBidPlaced))
}

func TestBidService_Watch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	lot := f.auction(t, seller, 100, 1)

	empty := f.viewer(t, lot.ID)
	snaps := empty.Pushed(websocket.ActionSnapshot)
	require.Len(t, snaps, 1)
	require.Equal(t, 100.0, snaps[0].CurrentPrice)
	require.Empty(t, snaps[0].LastBidderID)
	require.Equal(t, models.AuctionStatusOpen, snaps[0].Status)

	_, err := f.bids.PlaceBid(ctx, lot.ID, alice.ID, 125.5, time.Now())
	require.NoError(t, err)

	late := f.viewer(t, lot.ID)
	snaps = late.Pushed(websocket.ActionSnapshot)
	require.Len(t, snaps, 1)
	require.Equal(t, 125.5, snaps[0].CurrentPrice)
	require.Equal(t, "alice", snaps[0].LastBidder)
	require.Equal(t, alice.ID, snaps[0].LastBidderID)

	err = f.bids.Watch(ctx, uuid.NewString(), websocket.NewClient(&recordingConn{}, "x", ""))
	require.ErrorIs(t, err, bidding.ErrAuctionNotFound)
}

func TestBidService_NotifyClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Now().UTC()
	f.auctions.now = func() time.Time { return start }
	seller := f.user(t, "seller")
	alice := f.user(t, "alice")
	sold := f.auction(t, seller, 100, 1)
	f.auction(t, seller, 50, 1)
	f.auction(t, seller, 10, 5)

	_, err := f.bids.PlaceBid(ctx, sold.ID, alice.ID, 130, start.Add(10*time.Minute))
	require.NoError(t, err)
	viewer := f.viewer(t, sold.ID)

	later := start.Add(2 * time.Hour)
	n, err := f.bids.NotifyClosed(ctx, later)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	closed := viewer.Pushed(websocket.ActionAuctionClosed)
	require.Len(t, closed, 1)
	require.Equal(t, 130.0, closed[0].CurrentPrice)
	require.Equal(t, alice.ID, closed[0].LastBidderID)
	require.Equal(t, models.AuctionStatusClosed, closed[0].Status)

	n, err = f.bids.NotifyClosed(ctx, later)
	require.NoError(t, err)
	require.Zero(t, n, "each auction is announced once")
	require.Len(t, viewer.Pushed(websocket.ActionAuctionClosed), 1)

	n, err = f.bids.NotifyClosed(ctx, start.Add(6*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
