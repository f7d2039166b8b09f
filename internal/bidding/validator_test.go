package bidding

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	open := AuctionState{Found: true, CurrentPrice: 100, EndsAt: start.Add(time.Hour)}

	tests := []struct {
		name     string
		state    AuctionState
		proposal Proposal
		want     Reason
	}{
		{"accepted", open, Proposal{BidderID: "u1", Amount: 120, SubmittedAt: start.Add(time.Minute)}, ReasonNone},
		{"no identity", open, Proposal{Amount: 120, SubmittedAt: start}, ReasonUnauthenticated},
		{"identity checked before existence", AuctionState{}, Proposal{Amount: 120, SubmittedAt: start}, ReasonUnauthenticated},
		{"unknown auction", AuctionState{}, Proposal{BidderID: "u1", Amount: 120, SubmittedAt: start}, ReasonAuctionNotFound},
		{"zero amount", open, Proposal{BidderID: "u1", Amount: 0, SubmittedAt: start}, ReasonInvalidAmount},
		{"negative amount", open, Proposal{BidderID: "u1", Amount: -5, SubmittedAt: start}, ReasonInvalidAmount},
		{"nan amount", open, Proposal{BidderID: "u1", Amount: math.NaN(), SubmittedAt: start}, ReasonInvalidAmount},
		{"infinite amount", open, Proposal{BidderID: "u1", Amount: math.Inf(1), SubmittedAt: start}, ReasonInvalidAmount},
		{"equal to current price", open, Proposal{BidderID: "u1", Amount: 100, SubmittedAt: start}, ReasonBidTooLow},
		{"below current price", open, Proposal{BidderID: "u1", Amount: 99.99, SubmittedAt: start}, ReasonBidTooLow},
		{"sub-cent increment", open, Proposal{BidderID: "u1", Amount: 100.004, SubmittedAt: start}, ReasonBidTooLow},
		{"one cent above", open, Proposal{BidderID: "u1", Amount: 100.01, SubmittedAt: start}, ReasonNone},
		{"exactly at end", open, Proposal{BidderID: "u1", Amount: 150, SubmittedAt: start.Add(time.Hour)}, ReasonAuctionClosed},
		{"after end beats price check", open, Proposal{BidderID: "u1", Amount: 150, SubmittedAt: start.Add(61 * time.Minute)}, ReasonAuctionClosed},
		{"after end and too low", open, Proposal{BidderID: "u1", Amount: 50, SubmittedAt: start.Add(2 * time.Hour)}, ReasonAuctionClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Validate(tc.state, tc.proposal)
			require.Equal(t, tc.want, d.Reason)
			require.Equal(t, tc.want == ReasonNone, d.Accepted)
			if d.Accepted {
				require.NoError(t, d.Err())
			} else {
				require.Error(t, d.Err())
			}
		})
	}
}

func TestDecision_ErrKinds(t *testing.T) {
	tests := []struct {
		reason Reason
		target error
		kind   apperr.Kind
	}{
		{ReasonUnauthenticated, ErrUnauthenticated, apperr.KindAuth},
		{ReasonAuctionNotFound, ErrAuctionNotFound, apperr.KindNotFound},
		{ReasonInvalidAmount, ErrInvalidAmount, apperr.KindValidation},
		{ReasonAuctionClosed, ErrAuctionClosed, apperr.KindConflict},
		{ReasonBidTooLow, ErrBidTooLow, apperr.KindConflict},
	}

	for _, tc := range tests {
		t.Run(string(tc.reason), func(t *testing.T) {
			err := Decision{Reason: tc.reason}.Err()
			require.True(t, errors.Is(err, tc.target))
			require.Equal(t, tc.kind, apperr.KindOf(err))
			e, ok := apperr.As(err)
			require.True(t, ok)
			require.Equal(t, string(tc.reason), e.Code)
		})
	}
}

func TestNormalize(t *testing.T) {
	require.Equal(t, 120.01, Normalize(120.006))
	require.Equal(t, 120.0, Normalize(120.004))
	require.Equal(t, 0.1, Normalize(0.1))
}

func TestExceeds(t *testing.T) {
	require.True(t, Exceeds(0.3, 0.1+0.1))
	require.False(t, Exceeds(0.1+0.2, 0.3))
	require.True(t, Exceeds(150, 120))
}
