// internal/settlement/state.go
package settlement

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// State of one payment attempt.
type State int

const (
	Idle State = iota
	AddressesRegistered
	TransactionBuilt
	Signed
	Submitted
	Confirmed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AddressesRegistered:
		return "addresses_registered"
	case TransactionBuilt:
		return "transaction_built"
	case Signed:
		return "signed"
	case Submitted:
		return "submitted"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed || s == Cancelled
}

// Result describes a finished attempt.
type Result struct {
	ID        string
	State     State
	History   []State
	Signature solana.Signature
	// Link points at the transaction in the block explorer once a signature exists.
	Link     string
	Err      error
	Started  time.Time
	Finished time.Time
}

// advance records s. A terminal attempt never moves again, so a late step
// cannot turn Cancelled or Failed into something else.
func (r *Result) advance(s State) {
	if r.State.Terminal() {
		return
	}
	r.State = s
	r.History = append(r.History, s)
}

func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
