package api

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/ledger"
)

// toConnectError maps domain errors to Connect codes. Anything unknown is an
// internal error.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, auction.ErrInvalidParameter),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrAmountPrecision),
		errors.Is(err, ledger.ErrAmountOverflow):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auction.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, auction.ErrUnauthorized),
		errors.Is(err, auction.ErrSelfBidForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, auction.ErrInvalidState),
		errors.Is(err, auction.ErrAlreadyBid),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrInsufficientPayment),
		errors.Is(err, auction.ErrNothingToWithdraw),
		errors.Is(err, auction.ErrNothingToClaim):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
