// Package sim replays a rebalancing policy over the close-price panel under an
// explicit transaction-cost model, producing an equity curve, a position
// ledger and a trade ledger.
//
// Dates are processed strictly in increasing order; decisions at date t use
// only data at or before t. On a rebalance date SELL orders execute before BUY
// orders (raising cash before it is spent) and, within each side, instruments
// trade in panel column order, so the output is stable across runs. No trade
// may drive cash negative: when rounding leaves the BUY batch underfunded, all
// buy notionals are scaled down proportionally to exhaust available cash
// exactly.
package sim

import (
	"log/slog"
	"math"
	"time"

	apperrors "mktlab/internal/errors"
	"mktlab/pkg/contracts/domain"
)

const stage = "simulator"

// cashEpsilon absorbs float rounding when a scaled BUY batch spends available
// cash exactly; anything more negative is an accounting bug.
const cashEpsilon = 1e-9

// CostModel is the explicit transaction-cost model applied to every trade.
type CostModel struct {
	FeeBps      float64
	SlippageBps float64
	FixedCost   float64
}

func (c CostModel) feeRate() float64  { return c.FeeBps / 10000 }
func (c CostModel) slipRate() float64 { return c.SlippageBps / 10000 }

// Result is one policy replay: the equity curve, per-date position snapshots
// and the append-only trade ledger.
type Result struct {
	Policy    string               `json:"policy"`
	Equity    []domain.EquityPoint `json:"equity"`
	Positions []domain.Position    `json:"positions"`
	Trades    []domain.Trade       `json:"trades"`
}

// Simulator replays policies over a panel under one cost model.
type Simulator struct {
	costs  CostModel
	logger *slog.Logger
}

// New creates a simulator with the given cost model.
func New(costs CostModel, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{costs: costs, logger: logger}
}

// Run replays policy over the panel starting from initialCash.
// An empty panel or non-positive initial cash is a fatal configuration error
// reported before any simulation begins.
func (s *Simulator) Run(p *domain.Panel, initialCash float64, policy Policy) (*Result, error) {
	switch {
	case p == nil || p.Rows() == 0 || p.Cols() == 0:
		return nil, apperrors.Config("panel", "cannot simulate over an empty panel")
	case initialCash <= 0:
		return nil, apperrors.Config("initial_cash", "must be positive, got %v", initialCash)
	case s.costs.FeeBps < 0 || s.costs.SlippageBps < 0 || s.costs.FixedCost < 0:
		return nil, apperrors.Config("costs", "fee, slippage and fixed cost must be non-negative")
	}

	n := p.Cols()
	cash := initialCash
	qty := make([]float64, n)
	res := &Result{Policy: policy.Name()}

	for t, date := range p.Dates {
		prices := p.Close[t]
		for j, px := range prices {
			// The panel contract guarantees calendar-complete positive closes;
			// anything else is an invariant breach upstream, not a runtime
			// condition to tolerate.
			if !(px > 0) || math.IsNaN(px) {
				return nil, apperrors.Integrity(stage, "non-positive close for %s on %s",
					p.Symbols[j], date.Format(domain.DateFormat))
			}
		}

		if weights, ok := s.targets(policy, t, date, p); ok {
			var err error
			cash, err = s.rebalance(res, date, p.Symbols, prices, qty, cash, weights)
			if err != nil {
				return nil, err
			}
		}

		equity := cash + marketValue(qty, prices)
		res.Equity = append(res.Equity, domain.EquityPoint{Date: date, Equity: equity, Cash: cash})
		for j, symbol := range p.Symbols {
			res.Positions = append(res.Positions, domain.Position{
				Date:     date,
				Symbol:   symbol,
				Quantity: qty[j],
				Value:    qty[j] * prices[j],
			})
		}
	}

	s.logger.Info("simulation complete",
		slog.String("policy", policy.Name()),
		slog.Int("dates", len(res.Equity)),
		slog.Int("trades", len(res.Trades)))
	return res, nil
}

func (s *Simulator) targets(policy Policy, t int, date time.Time, p *domain.Panel) ([]float64, bool) {
	var prev time.Time
	if t > 0 {
		prev = p.Dates[t-1]
	}
	return policy.TargetWeights(t, date, prev, p.Symbols)
}

// rebalance moves the book toward the target weights at the day's closes.
// Equity is marked before any trade; sells execute first, then buys scaled to
// available cash. Returns the post-trade cash balance.
func (s *Simulator) rebalance(res *Result, date time.Time, symbols []string, prices, qty []float64, cash float64, weights []float64) (float64, error) {
	equity := cash + marketValue(qty, prices)
	feeRate := s.costs.feeRate()
	slipRate := s.costs.slipRate()

	delta := make([]float64, len(symbols))
	for j := range symbols {
		delta[j] = weights[j]*equity - qty[j]*prices[j]
	}

	// SELL pass.
	for j, symbol := range symbols {
		if delta[j] >= 0 {
			continue
		}
		exec := prices[j] * (1 - slipRate)
		dq := math.Min(-delta[j]/exec, qty[j])
		if dq <= 0 {
			continue
		}
		notional := dq * exec
		feeTotal := notional*feeRate + s.costs.FixedCost
		cash += notional - feeTotal
		qty[j] -= dq
		res.Trades = append(res.Trades, domain.Trade{
			Date:     date,
			Symbol:   symbol,
			Side:     domain.TradeSideSell,
			Quantity: dq,
			Price:    exec,
			Notional: notional,
			FeeTotal: feeTotal,
		})
	}

	// BUY pass. Each order costs notional*(1+feeRate) + fixed; if the batch
	// needs more than the cash raised, scale every notional down by the same
	// factor so the batch spends available cash exactly.
	var buys []int
	required := 0.0
	for j := range symbols {
		if delta[j] > 0 {
			buys = append(buys, j)
			required += delta[j]*(1+feeRate) + s.costs.FixedCost
		}
	}
	if len(buys) == 0 {
		return cash, nil
	}

	scale := 1.0
	if required > cash {
		available := cash - float64(len(buys))*s.costs.FixedCost
		denom := 0.0
		for _, j := range buys {
			denom += delta[j] * (1 + feeRate)
		}
		if available <= 0 || denom <= 0 {
			s.logger.Warn("skipping buy batch: cash cannot cover fixed costs",
				slog.String("date", date.Format(domain.DateFormat)),
				slog.Float64("cash", cash))
			return cash, nil
		}
		scale = available / denom
		s.logger.Info("rounding adjustment: buy batch scaled to available cash",
			slog.String("date", date.Format(domain.DateFormat)),
			slog.Float64("scale", scale))
	}

	for _, j := range buys {
		notional := delta[j] * scale
		if notional <= 0 {
			continue
		}
		exec := prices[j] * (1 + slipRate)
		dq := notional / exec
		feeTotal := notional*feeRate + s.costs.FixedCost
		cash -= notional + feeTotal
		qty[j] += dq
		res.Trades = append(res.Trades, domain.Trade{
			Date:     date,
			Symbol:   symbols[j],
			Side:     domain.TradeSideBuy,
			Quantity: dq,
			Price:    exec,
			Notional: notional,
			FeeTotal: feeTotal,
		})
	}

	if cash < 0 {
		if cash < -cashEpsilon {
			return 0, apperrors.Integrity(stage, "cash went negative (%v) on %s", cash, date.Format(domain.DateFormat))
		}
		cash = 0
	}
	return cash, nil
}

func marketValue(qty, prices []float64) float64 {
	total := 0.0
	for j := range qty {
		total += qty[j] * prices[j]
	}
	return total
}
