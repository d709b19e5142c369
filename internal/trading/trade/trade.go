// Package trade implements the per-trade state machine (spec.md §4.E):
// Pending, Active, Closed and Canceled are tag-disjoint, and every
// transition is a total function that consumes a Trade value and
// returns a new one, ported from the typestate design in
// dfa/states.rs but expressed with an explicit Status tag rather than
// Go's absent phantom types — Go has no zero-cost compile-time state
// guard, so illegal transitions are rejected at runtime instead.
package trade

import (
	"errors"
	"fmt"
	"time"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// Status is the trade's current state-machine tag.
type Status uint8

const (
	Pending Status = iota
	Active
	Closed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Closed:
		return "closed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Direction is the trade's side.
type Direction uint8

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// CloseReason records why an Active trade became Closed.
type CloseReason uint8

const (
	NoReason CloseReason = iota
	TakeProfit
	StopLoss
	MarketClose
	CanceledReason
	Pivot
)

func (r CloseReason) String() string {
	switch r {
	case TakeProfit:
		return "take_profit"
	case StopLoss:
		return "stop_loss"
	case MarketClose:
		return "market_close"
	case CanceledReason:
		return "canceled"
	case Pivot:
		return "pivot"
	default:
		return "none"
	}
}

// ExecutionBias resolves the ambiguity when a single candle's [low,high]
// interval covers both the stop-loss and the take-profit (spec.md §4.E).
type ExecutionBias uint8

const (
	// Pessimistic assumes adverse-first: stop-loss wins. Default.
	Pessimistic ExecutionBias = iota
	// Optimistic assumes favorable-first: take-profit wins.
	Optimistic
)

func (b ExecutionBias) String() string {
	if b == Optimistic {
		return "optimistic"
	}
	return "pessimistic"
}

var (
	// ErrIllegalTransition is returned when a method is called against
	// a Trade whose current Status does not permit it — this signals
	// an invariant violation in the caller (Ledger), not a rejected
	// agent command.
	ErrIllegalTransition = errors.New("trade: illegal state transition")
	// ErrInvalidOrder is returned when SL/TP/entry ordering or quantity
	// fails validation on Open/Modify.
	ErrInvalidOrder = errors.New("trade: invalid order parameters")
)

// Trade is a single position's full lifecycle record. Fields beyond ID,
// AgentID, Market, Direction and Quantity are populated progressively as
// the trade advances through Pending -> Active -> Closed/Canceled.
type Trade struct {
	ID        int64
	AgentID   string
	Market    event.MarketID
	Direction Direction
	Quantity  float64

	LimitPrice *price.Price
	StopLoss   *price.Price
	TakeProfit *price.Price

	EntryPrice price.Price
	EntryTS    time.Time

	ExitPrice   price.Price
	ExitTS      time.Time
	CloseReason CloseReason

	// ExpectedWinTicks, ExpectedLossTicks and RiskRewardRatio are frozen
	// at fill time from the SL/TP in force at that moment; later Modify
	// calls on an Active trade do not retroactively change them.
	ExpectedWinTicks  int64
	ExpectedLossTicks int64
	RiskRewardRatio   float64

	Status Status
}

// ValidateOrder enforces spec.md §6's price-ordering rule: long requires
// SL < entry < TP among provided values; short requires TP < entry < SL.
// Any subset of SL/TP may be omitted; only the inequalities among
// supplied values are enforced. Quantity must be strictly positive and
// on the instrument's lot grid.
func ValidateOrder(dir Direction, entry *price.Price, sl, tp *price.Price, qty float64, sym price.Symbol) error {
	if !sym.QuantityOnGrid(qty) {
		return fmt.Errorf("%w: quantity %v not on lot grid", ErrInvalidOrder, qty)
	}
	if entry == nil {
		if sl != nil && tp != nil {
			if dir == Long && !(float64(*sl) < float64(*tp)) {
				return fmt.Errorf("%w: long requires stop_loss < take_profit", ErrInvalidOrder)
			}
			if dir == Short && !(float64(*tp) < float64(*sl)) {
				return fmt.Errorf("%w: short requires take_profit < stop_loss", ErrInvalidOrder)
			}
		}
		return nil
	}
	e := float64(*entry)
	if dir == Long {
		if sl != nil && !(float64(*sl) < e) {
			return fmt.Errorf("%w: long requires stop_loss < entry", ErrInvalidOrder)
		}
		if tp != nil && !(e < float64(*tp)) {
			return fmt.Errorf("%w: long requires entry < take_profit", ErrInvalidOrder)
		}
	} else {
		if tp != nil && !(float64(*tp) < e) {
			return fmt.Errorf("%w: short requires take_profit < entry", ErrInvalidOrder)
		}
		if sl != nil && !(e < float64(*sl)) {
			return fmt.Errorf("%w: short requires entry < stop_loss", ErrInvalidOrder)
		}
	}
	return nil
}

// NewPending constructs a Pending trade awaiting a limit fill. Callers
// must validate with ValidateOrder first; NewPending itself does not
// re-validate so that Ledger can report a single rejection reason.
func NewPending(id int64, agentID string, market event.MarketID, dir Direction, qty float64, limit price.Price, sl, tp *price.Price) Trade {
	return Trade{
		ID:         id,
		AgentID:    agentID,
		Market:     market,
		Direction:  dir,
		Quantity:   qty,
		LimitPrice: &limit,
		StopLoss:   sl,
		TakeProfit: tp,
		Status:     Pending,
	}
}

// OpenAtMarket constructs a trade that skips Pending entirely — the
// Ledger's handling of Open{entry_price=None}, an immediate fill at the
// current close (spec.md §4.G step 3).
func OpenAtMarket(id int64, agentID string, market event.MarketID, dir Direction, qty float64, entryPrice price.Price, entryTS time.Time, sl, tp *price.Price, sym price.Symbol) Trade {
	t := Trade{
		ID:         id,
		AgentID:    agentID,
		Market:     market,
		Direction:  dir,
		Quantity:   qty,
		StopLoss:   sl,
		TakeProfit: tp,
		Status:     Pending,
	}
	filled, err := t.fillAt(entryPrice, entryTS, sym)
	if err != nil {
		// Unreachable: t.Status is freshly constructed as Pending.
		panic(err)
	}
	return filled
}

// Fill transitions Pending -> Active when the candle's [low,high]
// interval covers the limit price; entry is at the limit price and
// entry_ts is the candle's close_ts.
func (t Trade) Fill(candle event.OHLCV, sym price.Symbol) (Trade, bool, error) {
	if t.Status != Pending {
		return t, false, fmt.Errorf("%w: Fill on %s trade", ErrIllegalTransition, t.Status)
	}
	if t.LimitPrice == nil {
		return t, false, fmt.Errorf("%w: Fill on Pending trade with no limit price", ErrIllegalTransition)
	}
	limit := float64(*t.LimitPrice)
	if !candle.Covers(limit) {
		return t, false, nil
	}
	filled, err := t.fillAt(*t.LimitPrice, candle.CloseTS, sym)
	return filled, true, err
}

func (t Trade) fillAt(entryPrice price.Price, entryTS time.Time, sym price.Symbol) (Trade, error) {
	t.EntryPrice = price.Price(sym.NormalizePrice(float64(entryPrice)))
	t.EntryTS = entryTS
	t.Status = Active

	if t.TakeProfit != nil {
		t.ExpectedWinTicks = sym.PriceToTicks(directedDelta(t.Direction, float64(t.EntryPrice), float64(*t.TakeProfit)))
	}
	if t.StopLoss != nil {
		t.ExpectedLossTicks = sym.PriceToTicks(directedDelta(t.Direction, float64(t.EntryPrice), float64(*t.StopLoss)))
	}
	if t.ExpectedLossTicks != 0 {
		t.RiskRewardRatio = absFloat(float64(t.ExpectedWinTicks) / float64(t.ExpectedLossTicks))
	} else if t.TakeProfit != nil {
		t.RiskRewardRatio = maxFloat64
	}
	return t, nil
}

// CancelPending transitions Pending -> Canceled, on an explicit Cancel
// command or on episode end without a fill.
func (t Trade) CancelPending(ts time.Time) (Trade, error) {
	if t.Status != Pending {
		return t, fmt.Errorf("%w: CancelPending on %s trade", ErrIllegalTransition, t.Status)
	}
	t.ExitTS = ts
	t.CloseReason = CanceledReason
	t.Status = Canceled
	return t, nil
}

// Modify mutates SL/TP/limit on a Pending or Active trade. Any nil
// argument leaves the corresponding field unchanged.
func (t Trade) Modify(newLimit, newSL, newTP *price.Price) (Trade, error) {
	if t.Status != Pending && t.Status != Active {
		return t, fmt.Errorf("%w: Modify on %s trade", ErrIllegalTransition, t.Status)
	}
	if newLimit != nil {
		if t.Status != Pending {
			return t, fmt.Errorf("%w: cannot modify limit price on an Active trade", ErrInvalidOrder)
		}
		t.LimitPrice = newLimit
	}
	if newSL != nil {
		t.StopLoss = newSL
	}
	if newTP != nil {
		t.TakeProfit = newTP
	}
	return t, nil
}

// ResolveIntrabar applies spec.md §4.E's intrabar exit resolution to an
// Active trade against one new candle. If only one of SL/TP falls
// inside [low,high], that one fires; if both do, bias breaks the tie;
// if neither does, the trade remains Active unmodified.
func (t Trade) ResolveIntrabar(candle event.OHLCV, bias ExecutionBias, sym price.Symbol) (Trade, bool, error) {
	if t.Status != Active {
		return t, false, fmt.Errorf("%w: ResolveIntrabar on %s trade", ErrIllegalTransition, t.Status)
	}

	slHit := t.StopLoss != nil && candle.Covers(float64(*t.StopLoss))
	tpHit := t.TakeProfit != nil && candle.Covers(float64(*t.TakeProfit))

	var reason CloseReason
	var exitPrice price.Price
	switch {
	case slHit && tpHit:
		if bias == Optimistic {
			reason, exitPrice = TakeProfit, *t.TakeProfit
		} else {
			reason, exitPrice = StopLoss, *t.StopLoss
		}
	case slHit:
		reason, exitPrice = StopLoss, *t.StopLoss
	case tpHit:
		reason, exitPrice = TakeProfit, *t.TakeProfit
	default:
		return t, false, nil
	}

	closed, err := t.closeAt(candle.CloseTS, exitPrice, reason, sym)
	return closed, true, err
}

// MarketClose transitions Active -> Closed at the current close price,
// independent of SL/TP (spec.md §4.G: Ledger's MarketClose action, and
// §4.H's episode-timeout / episode-end forced close).
func (t Trade) MarketClose(ts time.Time, closePrice price.Price, sym price.Symbol) (Trade, error) {
	if t.Status != Active {
		return t, fmt.Errorf("%w: MarketClose on %s trade", ErrIllegalTransition, t.Status)
	}
	return t.closeAt(ts, closePrice, MarketClose, sym)
}

// PivotClose closes an Active trade for a convenience "pivot" exit at
// the given price/time, which the Ledger sets to the current candle's
// close — the same price/time the replacement trade enters at — so the
// agent can flip direction within a single step without losing a bar.
// Modeled on dfa/states.rs's Trade<Active>::pivot_event.
func (t Trade) PivotClose(newEntryTS time.Time, newEntryPrice price.Price, sym price.Symbol) (Trade, error) {
	if t.Status != Active {
		return t, fmt.Errorf("%w: PivotClose on %s trade", ErrIllegalTransition, t.Status)
	}
	return t.closeAt(newEntryTS, newEntryPrice, Pivot, sym)
}

func (t Trade) closeAt(ts time.Time, exitPrice price.Price, reason CloseReason, sym price.Symbol) (Trade, error) {
	t.ExitTS = ts
	t.ExitPrice = price.Price(sym.NormalizePrice(float64(exitPrice)))
	t.CloseReason = reason
	t.Status = Closed
	return t, nil
}

// Reset cleans a Closed or Canceled cell back to an empty Pending tag,
// preserving nothing of the prior trade (dfa/states.rs's Trade<Close>::reset).
func (t Trade) Reset() (Trade, error) {
	if t.Status != Closed && t.Status != Canceled {
		return t, fmt.Errorf("%w: Reset on %s trade", ErrIllegalTransition, t.Status)
	}
	return Trade{}, nil
}

// RealizedPnL returns the signed tick count and USD amount between
// entry and exit for a Closed trade, scaled by Quantity.
func (t Trade) RealizedPnL(sym price.Symbol) (ticks int64, usd float64) {
	ticks = sym.PriceToTicks(directedDelta(t.Direction, float64(t.EntryPrice), float64(t.ExitPrice)))
	usd = sym.TicksToUSD(ticks) * t.Quantity
	return ticks, usd
}

// directedDelta returns (to - from) for Long, (from - to) for Short, so
// that a favorable move is always a positive tick count regardless of
// side (dfa/states.rs's Trade::compute_profit).
func directedDelta(dir Direction, from, to float64) float64 {
	if dir == Short {
		return from - to
	}
	return to - from
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

const maxFloat64 = 1.7976931348623157e+308
