// Package ledger implements the per-run Ledger (spec.md §4.G): a
// vector of per-episode States, the action-application pipeline, the
// intrabar update pass, and Journal emission. Grounded on the
// command-dispatch/trace style used throughout sawpanic-cryptorun's
// provider adapters (validate, dispatch, log the outcome) and on
// dfa/states.rs for the underlying trade transitions.
package ledger

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/episode"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/state"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// MarketView exposes the current candle per market for one step, built
// by the Environment from the cursor (spec.md §4.H step 1).
type MarketView map[event.MarketID]event.OHLCV

// ApplyActionsResult is the §4.G step 5 return value.
type ApplyActionsResult struct {
	Executed int
	Rejected int
}

// Ledger owns one States cell per episode id and the symbol table
// needed for price-grid-exact fills and closes.
type Ledger struct {
	symbols              map[event.MarketID]price.Symbol
	bias                 trade.ExecutionBias
	invalidActionPenalty float64

	episodes map[episode.ID]*state.States
	nextID   int64
}

// New constructs a Ledger. symbols must have an entry for every market
// id the run will ever touch. invalidActionPenalty is stored but not
// applied here: the Ledger only counts rejections, and
// Environment.Step adds its own Config.InvalidActionPenalty to the
// reward once per rejected command (spec.md §4.H step 3c).
func New(symbols map[event.MarketID]price.Symbol, bias trade.ExecutionBias, invalidActionPenalty float64) *Ledger {
	return &Ledger{
		symbols:              symbols,
		bias:                 bias,
		invalidActionPenalty: invalidActionPenalty,
		episodes:             make(map[episode.ID]*state.States),
	}
}

// Clear drops every episode's States, used by Environment.reset()'s
// full-restart path (spec.md §4.H).
func (l *Ledger) Clear() {
	l.episodes = make(map[episode.ID]*state.States)
}

func (l *Ledger) states(ep episode.ID) *state.States {
	s, ok := l.episodes[ep]
	if !ok {
		s = state.New()
		l.episodes[ep] = s
	}
	return s
}

// nextTradeID allocates the next value of this Ledger's own counter
// (1, 2, ...) for an Open whose TradeID, or a Pivot whose NewTradeID,
// is zero. Callers are expected to supply ids on every action; this
// only backstops a zero value and is not checked against
// caller-supplied ids.
func (l *Ledger) nextTradeID() int64 {
	l.nextID++
	return l.nextID
}

// ApplyActions iterates actions in deterministic sort order (market id,
// then agent id, then trade id), validates and dispatches each one, and
// returns the executed/rejected counts (spec.md §4.G step 1-5).
func (l *Ledger) ApplyActions(ep episode.ID, actions []Action, view MarketView) (ApplyActionsResult, error) {
	sorted := append([]Action(nil), actions...)
	sort.Slice(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	var result ApplyActionsResult
	s := l.states(ep)

	for _, a := range sorted {
		sym, ok := l.symbols[a.Market]
		if !ok {
			result.Rejected++
			log.Warn().Str("market", a.Market.String()).Msg("ledger: action rejected, unknown market")
			continue
		}

		if err := l.dispatch(s, a, sym, view); err != nil {
			result.Rejected++
			log.Warn().
				Str("market", a.Market.String()).
				Str("agent_id", a.AgentID).
				Int64("trade_id", a.TradeID).
				Str("kind", a.Kind.String()).
				Err(err).
				Msg("ledger: action rejected")
			continue
		}
		result.Executed++
		log.Debug().
			Str("market", a.Market.String()).
			Str("agent_id", a.AgentID).
			Int64("trade_id", a.TradeID).
			Str("kind", a.Kind.String()).
			Msg("ledger: action applied")
	}
	return result, nil
}

func (l *Ledger) dispatch(s *state.States, a Action, sym price.Symbol, view MarketView) error {
	switch a.Kind {
	case OpenAction:
		return l.dispatchOpen(s, a, sym, view)
	case ModifyAction:
		return l.dispatchModify(s, a)
	case MarketCloseAction:
		return l.dispatchMarketClose(s, a, sym, view)
	case CancelAction:
		return l.dispatchCancel(s, a)
	case PivotAction:
		return l.dispatchPivot(s, a, sym, view)
	default:
		return fmt.Errorf("ledger: unknown action kind %v", a.Kind)
	}
}

func (l *Ledger) dispatchOpen(s *state.States, a Action, sym price.Symbol, view MarketView) error {
	if err := trade.ValidateOrder(a.Direction, a.EntryPrice, a.StopLoss, a.TakeProfit, a.Quantity, sym); err != nil {
		return err
	}

	tradeID := a.TradeID
	if tradeID == 0 {
		tradeID = l.nextTradeID()
	}

	if a.EntryPrice == nil {
		// Open{entry_price=None} => immediate market fill at current close.
		candle, ok := view[a.Market]
		if !ok {
			return fmt.Errorf("ledger: no current candle for market %s", a.Market)
		}
		t := trade.OpenAtMarket(tradeID, a.AgentID, a.Market, a.Direction, a.Quantity, price.Price(candle.Close), candle.CloseTS, a.StopLoss, a.TakeProfit, sym)
		return s.Insert(t)
	}

	t := trade.NewPending(tradeID, a.AgentID, a.Market, a.Direction, a.Quantity, *a.EntryPrice, a.StopLoss, a.TakeProfit)
	return s.Insert(t)
}

func (l *Ledger) dispatchModify(s *state.States, a Action) error {
	t, ok := s.Get(a.Market, a.TradeID)
	if !ok {
		return fmt.Errorf("ledger: no live trade %d in market %s", a.TradeID, a.Market)
	}
	modified, err := t.Modify(a.NewEntryPrice, a.NewStopLoss, a.NewTakeProfit)
	if err != nil {
		return err
	}
	return s.Update(modified)
}

func (l *Ledger) dispatchMarketClose(s *state.States, a Action, sym price.Symbol, view MarketView) error {
	t, ok := s.Get(a.Market, a.TradeID)
	if !ok {
		return fmt.Errorf("ledger: no live trade %d in market %s", a.TradeID, a.Market)
	}
	if t.Status != trade.Active {
		return fmt.Errorf("ledger: MarketClose on non-active trade %d (status=%s)", a.TradeID, t.Status)
	}
	candle, ok := view[a.Market]
	if !ok {
		return fmt.Errorf("ledger: no current candle for market %s", a.Market)
	}
	closed, err := t.MarketClose(candle.CloseTS, price.Price(candle.Close), sym)
	if err != nil {
		return err
	}
	if err := s.Close(closed); err != nil {
		return err
	}
	_, usd := closed.RealizedPnL(sym)
	s.AddReward(usd)
	return nil
}

// dispatchPivot closes a's TradeID at the current candle close and
// immediately opens NewTradeID against the same close/timestamp, so a
// direction flip costs one action instead of two and never skips a bar
// (spec.md supplemental: actions.Pivot desugars to MarketClose+Open).
// The Journal records the exit as "pivot", distinct from a plain
// MarketClose.
func (l *Ledger) dispatchPivot(s *state.States, a Action, sym price.Symbol, view MarketView) error {
	t, ok := s.Get(a.Market, a.TradeID)
	if !ok {
		return fmt.Errorf("ledger: no live trade %d in market %s", a.TradeID, a.Market)
	}
	if t.Status != trade.Active {
		return fmt.Errorf("ledger: Pivot on non-active trade %d (status=%s)", a.TradeID, t.Status)
	}
	candle, ok := view[a.Market]
	if !ok {
		return fmt.Errorf("ledger: no current candle for market %s", a.Market)
	}

	if err := trade.ValidateOrder(a.Direction, nil, a.StopLoss, a.TakeProfit, a.Quantity, sym); err != nil {
		return err
	}

	closed, err := t.PivotClose(candle.CloseTS, price.Price(candle.Close), sym)
	if err != nil {
		return err
	}
	if err := s.Close(closed); err != nil {
		return err
	}
	_, usd := closed.RealizedPnL(sym)
	s.AddReward(usd)

	newTradeID := a.NewTradeID
	if newTradeID == 0 {
		newTradeID = l.nextTradeID()
	}
	opened := trade.OpenAtMarket(newTradeID, a.AgentID, a.Market, a.Direction, a.Quantity, price.Price(candle.Close), candle.CloseTS, a.StopLoss, a.TakeProfit, sym)
	return s.Insert(opened)
}

func (l *Ledger) dispatchCancel(s *state.States, a Action) error {
	t, ok := s.Get(a.Market, a.TradeID)
	if !ok {
		return fmt.Errorf("ledger: no live trade %d in market %s", a.TradeID, a.Market)
	}
	if t.Status != trade.Pending {
		return fmt.Errorf("ledger: Cancel on non-pending trade %d (status=%s)", a.TradeID, t.Status)
	}
	canceled, err := t.CancelPending(t.EntryTS)
	if err != nil {
		return err
	}
	return s.Close(canceled)
}

// ApplyUpdates applies one step's worth of intrabar dynamics: Pending
// trades fill against the new candle, Active trades resolve against
// SL/TP, and every trade's prices are snapped to the instrument grid
// (spec.md §4.G apply_updates).
func (l *Ledger) ApplyUpdates(ep episode.ID, view MarketView) error {
	s := l.states(ep)
	for _, market := range s.Markets() {
		sym, ok := l.symbols[market]
		if !ok {
			continue
		}
		candle, ok := view[market]
		if !ok {
			continue
		}
		for _, t := range s.LiveTrades(market) {
			switch t.Status {
			case trade.Pending:
				filled, didFill, err := t.Fill(candle, sym)
				if err != nil {
					return err
				}
				if didFill {
					if err := s.Update(filled); err != nil {
						return err
					}
				}
			case trade.Active:
				closed, triggered, err := t.ResolveIntrabar(candle, l.bias, sym)
				if err != nil {
					return err
				}
				if triggered {
					if err := s.Close(closed); err != nil {
						return err
					}
					_, usd := closed.RealizedPnL(sym)
					s.AddReward(usd)
				}
			}
		}
	}
	return nil
}

// ForceCloseEpisode closes every remaining Active trade at the
// episode's final candle and cancels every remaining Pending trade.
// Environment.Step calls this the moment an episode both truncates
// (boundary or data end reached with live trades still open) and has
// no further episode to advance into, so those trades still appear in
// AsJournal's output as closed rows instead of vanishing silently. A
// Truncated episode that will resume via AdvanceToNextEpisode does not
// call this — its trades stay open across the reset (spec.md §4.H).
func (l *Ledger) ForceCloseEpisode(ep episode.ID, view MarketView) error {
	s := l.states(ep)
	for _, market := range s.Markets() {
		sym, ok := l.symbols[market]
		if !ok {
			continue
		}
		candle, hasCandle := view[market]
		for _, t := range s.LiveTrades(market) {
			switch t.Status {
			case trade.Active:
				if !hasCandle {
					continue
				}
				closed, err := t.MarketClose(candle.CloseTS, price.Price(candle.Close), sym)
				if err != nil {
					return err
				}
				if err := s.Close(closed); err != nil {
					return err
				}
				_, usd := closed.RealizedPnL(sym)
				s.AddReward(usd)
			case trade.Pending:
				ts := candle.CloseTS
				canceled, err := t.CancelPending(ts)
				if err != nil {
					return err
				}
				if err := s.Close(canceled); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PopStepReward returns the accumulated reward for ep and zeroes it
// (spec.md §4.G pop_step_reward).
func (l *Ledger) PopStepReward(ep episode.ID) float64 {
	return l.states(ep).PopReward()
}

// IsTerminal reports whether every live trade in ep has closed.
func (l *Ledger) IsTerminal(ep episode.ID) bool {
	return l.states(ep).AllClosed()
}

// Symbol returns the instrument grid for market, if registered.
func (l *Ledger) Symbol(market event.MarketID) (price.Symbol, bool) {
	sym, ok := l.symbols[market]
	return sym, ok
}

// AsJournal flattens every dead trade across every episode to one
// report.Row each, sorted ascending by entry timestamp (spec.md §4.G
// as_df).
func (l *Ledger) AsJournal() (report.Journal, error) {
	var rows []report.Row
	var rowID uint32

	episodeIDs := make([]episode.ID, 0, len(l.episodes))
	for id := range l.episodes {
		episodeIDs = append(episodeIDs, id)
	}
	sort.Slice(episodeIDs, func(i, j int) bool { return episodeIDs[i] < episodeIDs[j] })

	for _, epID := range episodeIDs {
		s := l.episodes[epID]
		for _, t := range s.AllDeadTrades() {
			sym := l.symbols[t.Market]
			rowID++
			rows = append(rows, rowFromTrade(rowID, epID, t, sym))
		}
	}

	sorted := report.SortRows(rows)
	return report.NewJournal(sorted)
}

func rowFromTrade(rowID uint32, epID episode.ID, t trade.Trade, sym price.Symbol) report.Row {
	realizedTicks, realizedUSD := int64(0), 0.0
	if t.Status == trade.Closed {
		realizedTicks, realizedUSD = t.RealizedPnL(sym)
	}

	var stopLoss, takeProfit float64
	if t.StopLoss != nil {
		stopLoss = float64(*t.StopLoss)
	}
	if t.TakeProfit != nil {
		takeProfit = float64(*t.TakeProfit)
	}

	return report.Row{
		RowID:                 rowID,
		EpisodeID:             uint32(epID),
		TradeID:               t.ID,
		TradeState:            t.Status.String(),
		AgentID:               t.AgentID,
		DataBroker:            t.Market.Broker,
		Exchange:              t.Market.Exchange,
		Symbol:                t.Market.Symbol,
		MarketType:            sym.Kind.String(),
		TradeType:             t.Direction.String(),
		EntryPrice:            float64(t.EntryPrice),
		StopLossPrice:         stopLoss,
		TakeProfitPrice:       takeProfit,
		ExitPrice:             float64(t.ExitPrice),
		Quantity:              t.Quantity,
		ExpectedLossInTicks:   t.ExpectedLossTicks,
		ExpectedProfitInTicks: t.ExpectedWinTicks,
		RealizedReturnInTicks: realizedTicks,
		ExpectedLossDollars:   sym.TicksToUSD(t.ExpectedLossTicks) * t.Quantity,
		ExpectedProfitDollars: sym.TicksToUSD(t.ExpectedWinTicks) * t.Quantity,
		RealizedReturnDollars: realizedUSD,
		RiskRewardRatio:       t.RiskRewardRatio,
		EntryTimestamp:        t.EntryTS,
		ExitTimestamp:         t.ExitTS,
		ExitReason:            t.CloseReason.String(),
	}
}
