package ledger

import (
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// ActionKind discriminates the five command shapes an agent may submit
// in a single step (spec.md §6).
type ActionKind uint8

const (
	OpenAction ActionKind = iota
	ModifyAction
	MarketCloseAction
	CancelAction
	PivotAction
)

func (k ActionKind) String() string {
	switch k {
	case OpenAction:
		return "open"
	case ModifyAction:
		return "modify"
	case MarketCloseAction:
		return "market_close"
	case CancelAction:
		return "cancel"
	case PivotAction:
		return "pivot"
	default:
		return "unknown"
	}
}

// Action is one command dispatched against a single trade id in a
// single market during one step. Only the fields relevant to Kind are
// consulted; the others are ignored.
type Action struct {
	Kind     ActionKind
	Market   event.MarketID
	AgentID  string
	TradeID  int64

	// OpenAction
	Direction  trade.Direction
	Quantity   float64
	EntryPrice *price.Price // nil => market order
	StopLoss   *price.Price
	TakeProfit *price.Price

	// ModifyAction
	NewEntryPrice *price.Price
	NewStopLoss   *price.Price
	NewTakeProfit *price.Price

	// MarketCloseAction
	CloseQuantity *float64 // nil => full close

	// PivotAction: closes TradeID at the current candle close, then
	// immediately opens NewTradeID in the same market with the OpenAction
	// fields above (Open's semantics, minus EntryPrice — a pivot always
	// fills at the same close the old trade exited at).
	NewTradeID int64
}

// Open builds a market or pending Open action. entryPrice nil means an
// immediate market fill at the current close.
func Open(market event.MarketID, agentID string, tradeID int64, dir trade.Direction, qty float64, entryPrice, stopLoss, takeProfit *price.Price) Action {
	return Action{Kind: OpenAction, Market: market, AgentID: agentID, TradeID: tradeID,
		Direction: dir, Quantity: qty, EntryPrice: entryPrice, StopLoss: stopLoss, TakeProfit: takeProfit}
}

// MarketCloseFull builds a full MarketClose action against tradeID.
func MarketCloseFull(market event.MarketID, agentID string, tradeID int64) Action {
	return Action{Kind: MarketCloseAction, Market: market, AgentID: agentID, TradeID: tradeID}
}

// Cancel builds a Cancel action against a Pending tradeID.
func Cancel(market event.MarketID, agentID string, tradeID int64) Action {
	return Action{Kind: CancelAction, Market: market, AgentID: agentID, TradeID: tradeID}
}

// Pivot builds the convenience flip action: close tradeID and open
// newTradeID in the opposite (or any new) direction against the same
// candle close in one command, so a direction flip never costs a bar
// (spec.md supplemental feature, desugared by the Ledger into
// MarketClose+Open with exit_reason "pivot").
func Pivot(market event.MarketID, agentID string, tradeID, newTradeID int64, dir trade.Direction, qty float64, stopLoss, takeProfit *price.Price) Action {
	return Action{Kind: PivotAction, Market: market, AgentID: agentID, TradeID: tradeID, NewTradeID: newTradeID,
		Direction: dir, Quantity: qty, StopLoss: stopLoss, TakeProfit: takeProfit}
}

// SortKey orders actions by market id, then agent id, then trade id —
// the deterministic application order required by spec.md §4.G step 1,
// independent of submission/insertion order.
func SortKey(a Action) (event.MarketID, string, int64) {
	return a.Market, a.AgentID, a.TradeID
}

// Less implements the total order used to sort a step's action batch.
func Less(a, b Action) bool {
	if a.Market != b.Market {
		return a.Market.Less(b.Market)
	}
	if a.AgentID != b.AgentID {
		return a.AgentID < b.AgentID
	}
	return a.TradeID < b.TradeID
}
