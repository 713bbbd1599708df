package auction

import "errors"

// Domain errors. Operations wrap them with detail; match with errors.Is.
var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNotFound            = errors.New("auction not found")
	ErrInvalidState        = errors.New("operation not allowed in current auction state")
	ErrUnauthorized        = errors.New("unauthorized: caller lacks the required role")
	ErrSelfBidForbidden    = errors.New("owner cannot bid on or buy their own auction")
	ErrBidTooLow           = errors.New("bid amount is too low")
	ErrAlreadyBid          = errors.New("address has already bid on this sealed auction")
	ErrInsufficientPayment = errors.New("payment is below the selling price")
	ErrNothingToWithdraw   = errors.New("nothing to withdraw")
	ErrNothingToClaim      = errors.New("nothing to claim")

	// ErrJournalConflict is returned by a Journal that already holds a
	// record at the offset being appended.
	ErrJournalConflict = errors.New("journal already holds this record")
)
