package lifecycle

import (
	"swap-engine/pkg/simulation"
	"swap-engine/pkg/types"
)

// State is one step of the swap flow. The concrete types below are the only states.
type State interface {
	Name() string
	isState()
}

type Idle struct{}

type FetchingQuotes struct{}

// Reviewing holds the quote the user is looking at
type Reviewing struct {
	Quote *types.SwapQuote
}

type Simulating struct {
	Quote *types.SwapQuote
}

// ReadyToSwap holds the receipt that allows the next broadcast
type ReadyToSwap struct {
	Quote   *types.SwapQuote
	Receipt *simulation.Receipt
}

type Swapping struct {
	Quote *types.SwapQuote
}

type Success struct {
	Quote  *types.SwapQuote
	TxHash string
}

type Failed struct {
	Err error
}

func (Idle) Name() string           { return "idle" }
func (FetchingQuotes) Name() string { return "fetchingQuotes" }
func (Reviewing) Name() string      { return "reviewing" }
func (Simulating) Name() string     { return "simulating" }
func (ReadyToSwap) Name() string    { return "readyToSwap" }
func (Swapping) Name() string       { return "swapping" }
func (Success) Name() string        { return "success" }
func (Failed) Name() string         { return "error" }

func (Idle) isState()           {}
func (FetchingQuotes) isState() {}
func (Reviewing) isState()      {}
func (Simulating) isState()     {}
func (ReadyToSwap) isState()    {}
func (Swapping) isState()       {}
func (Success) isState()        {}
func (Failed) isState()         {}

// SameState compares states for change detection. Reviewing and ReadyToSwap compare by
// quote id only, so a refreshed copy of the same offer is not a new state.
func SameState(a, b State) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Name() != b.Name() {
		return false
	}
	switch x := a.(type) {
	case Reviewing:
		return quoteID(x.Quote) == quoteID(b.(Reviewing).Quote)
	case ReadyToSwap:
		return quoteID(x.Quote) == quoteID(b.(ReadyToSwap).Quote)
	case Simulating:
		return quoteID(x.Quote) == quoteID(b.(Simulating).Quote)
	case Swapping:
		return quoteID(x.Quote) == quoteID(b.(Swapping).Quote)
	case Success:
		return x.TxHash == b.(Success).TxHash
	case Failed:
		y := b.(Failed)
		if x.Err == nil || y.Err == nil {
			return x.Err == y.Err
		}
		return x.Err.Error() == y.Err.Error()
	default:
		return true
	}
}

func quoteID(q *types.SwapQuote) string {
	if q == nil {
		return ""
	}
	return q.ID
}
