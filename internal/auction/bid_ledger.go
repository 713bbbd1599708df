package auction

import "github.com/floroz/escrow-auction/internal/ledger"

// BidLedger is the escrow of one auction: what each bidder currently has in
// custody. It is owned by its Auction and relies on the auction's lock.
//
// Every unit enters through Deposit and leaves through Release, so
// Total() == Deposited() - Released() at all times.
type BidLedger struct {
	held      map[ledger.Address]ledger.Amount
	deposited ledger.Amount
	released  ledger.Amount
}

// NewBidLedger creates an empty ledger
func NewBidLedger() *BidLedger {
	return &BidLedger{held: make(map[ledger.Address]ledger.Amount)}
}

// Balance returns the amount held for addr (zero when nothing is held).
func (l *BidLedger) Balance(addr ledger.Address) ledger.Amount {
	return l.held[addr]
}

// CanDeposit reports whether amount fits into the cumulative counters.
func (l *BidLedger) CanDeposit(amount ledger.Amount) bool {
	_, err := l.deposited.Add(amount)
	return err == nil
}

// Deposit replaces the bidder's held amount with amount. Whatever the bidder
// held before is released back to them and returned as the refund.
func (l *BidLedger) Deposit(addr ledger.Address, amount ledger.Amount) (refund ledger.Amount) {
	refund = l.Release(addr)
	l.held[addr] = amount
	l.deposited += amount
	return refund
}

// Release zeroes the bidder's entry and returns what was held.
func (l *BidLedger) Release(addr ledger.Address) ledger.Amount {
	amount := l.held[addr]
	if amount == 0 {
		return 0
	}
	delete(l.held, addr)
	l.released += amount
	return amount
}

// Total is the sum of all held amounts.
func (l *BidLedger) Total() ledger.Amount {
	var total ledger.Amount
	for _, amount := range l.held {
		total += amount
	}
	return total
}

func (l *BidLedger) Deposited() ledger.Amount { return l.deposited }

func (l *BidLedger) Released() ledger.Amount { return l.released }
