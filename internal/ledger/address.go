package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an owner, bidder or purchaser. The zero value means "none".
type Address string

// NoAddress is the empty address returned when no bidder or purchaser is set.
const NoAddress Address = ""

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress validates a 0x-prefixed hex address and returns it in its
// EIP-55 checksummed form, so equal addresses compare equal as strings.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return NoAddress, ErrInvalidAddress
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return NoAddress, ErrInvalidAddress
	}
	return Address(addr.Hex()), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) IsZero() bool {
	return a == NoAddress
}

func (a Address) String() string {
	return string(a)
}
