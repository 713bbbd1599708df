package api

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/ledger"
)

func TestToConnectError(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{fmt.Errorf("%w: duration must be positive", auction.ErrInvalidParameter), connect.CodeInvalidArgument},
		{ledger.ErrAmountPrecision, connect.CodeInvalidArgument},
		{auction.ErrNotFound, connect.CodeNotFound},
		{fmt.Errorf("%w: only the owner can claim", auction.ErrUnauthorized), connect.CodePermissionDenied},
		{auction.ErrSelfBidForbidden, connect.CodePermissionDenied},
		{fmt.Errorf("%w: auction is ENDED", auction.ErrInvalidState), connect.CodeFailedPrecondition},
		{auction.ErrAlreadyBid, connect.CodeFailedPrecondition},
		{auction.ErrBidTooLow, connect.CodeFailedPrecondition},
		{fmt.Errorf("%w: no bid can exceed the increment: %w", auction.ErrBidTooLow, ledger.ErrAmountOverflow), connect.CodeInvalidArgument},
		{auction.ErrInsufficientPayment, connect.CodeFailedPrecondition},
		{auction.ErrNothingToWithdraw, connect.CodeFailedPrecondition},
		{auction.ErrNothingToClaim, connect.CodeFailedPrecondition},
		{fmt.Errorf("failed to journal record: %w", errors.New("connection reset")), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := toConnectError(tt.err)
			assert.Equal(t, tt.want, connect.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestJSONCodec_EmptyBody(t *testing.T) {
	var req ListAuctionsRequest
	assert.NoError(t, JSONCodec{}.Unmarshal(nil, &req))
	assert.Equal(t, ListAuctionsRequest{}, req)
}
