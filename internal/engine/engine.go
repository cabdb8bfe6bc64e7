// Package engine provides a baseline implementation of the analysis.Engine
// contract: swing-point liquidity pools, sweep detection and a simple scored
// signal. A production deployment is expected to swap in a full
// market-structure engine behind the same interface.
package engine

import (
	"context"
	"fmt"
	"math"

	"signal-monitor-go/internal/analysis"
)

const (
	swingLookback = 2  // candles on each side of a swing point
	atrPeriod     = 14 // candles in the ATR window
)

// Engine is a heuristic candle analyzer.
type Engine struct {
	baseMinScore float64
}

var _ analysis.Engine = (*Engine)(nil)

// New creates a baseline engine with the given unadjusted minimum score.
func New(baseMinScore float64) *Engine {
	return &Engine{baseMinScore: baseMinScore}
}

// BaseMinScore returns the engine's unadjusted minimum acceptance score.
func (e *Engine) BaseMinScore() float64 {
	return e.baseMinScore
}

// Analyze detects swing-point pools, checks whether the latest candle swept
// one, and emits a candidate signal in the direction of the implied reversal.
func (e *Engine) Analyze(ctx context.Context, symbol string, candles []analysis.Candle) (analysis.Result, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Result{}, err
	}
	if len(candles) < atrPeriod+2*swingLookback+1 {
		return analysis.Result{}, fmt.Errorf("need at least %d candles for %s, got %d",
			atrPeriod+2*swingLookback+1, symbol, len(candles))
	}

	atr := averageTrueRange(candles, atrPeriod)
	pools := swingPools(candles)
	last := candles[len(candles)-1]

	result := analysis.Result{Pools: pools}

	sweep, direction := detectSweep(pools, last)
	if sweep == nil {
		result.BlockingReasons = append(result.BlockingReasons, "no liquidity sweep on latest candle")
		return result, nil
	}
	result.Sweeps = []analysis.Sweep{*sweep}
	result.HasValidSetup = true

	// Score from sweep depth relative to volatility, capped at 100.
	depth := math.Abs(last.Close-sweep.Price) / atr
	score := 50 + 25*depth
	if score > 100 {
		score = 100
	}

	entry := last.Close
	side := 1.0
	if direction == analysis.DirectionShort {
		side = -1
	}

	result.Signal = &analysis.Signal{
		Direction:   direction,
		Score:       score,
		Reasoning:   fmt.Sprintf("Liquidity sweep of %.5g with close back at %.5g", sweep.Price, entry),
		EntryPrice:  entry,
		StopPrice:   entry - side*1.5*atr,
		TargetPrice: entry + side*3*atr,
		ATR:         atr,
	}
	return result, nil
}

// averageTrueRange computes the ATR over the last period candles.
func averageTrueRange(candles []analysis.Candle, period int) float64 {
	start := len(candles) - period
	var sum float64
	for i := start; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// swingPools collects swing highs and lows as resting liquidity levels.
func swingPools(candles []analysis.Candle) []analysis.Pool {
	var pools []analysis.Pool
	for i := swingLookback; i < len(candles)-swingLookback-1; i++ {
		high, low := true, true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				high = false
			}
			if candles[j].Low <= candles[i].Low {
				low = false
			}
		}
		if high {
			pools = append(pools, analysis.Pool{Price: candles[i].High, Side: "SELL"})
		}
		if low {
			pools = append(pools, analysis.Pool{Price: candles[i].Low, Side: "BUY"})
		}
	}
	return pools
}

// detectSweep reports whether the last candle took out a pool and closed back
// through it, which implies a reversal in the opposite direction.
func detectSweep(pools []analysis.Pool, last analysis.Candle) (*analysis.Sweep, string) {
	for i := len(pools) - 1; i >= 0; i-- {
		pool := pools[i]
		switch pool.Side {
		case "BUY":
			if last.Low < pool.Price && last.Close > pool.Price {
				return &analysis.Sweep{Price: pool.Price, Time: last.OpenTime}, analysis.DirectionLong
			}
		case "SELL":
			if last.High > pool.Price && last.Close < pool.Price {
				return &analysis.Sweep{Price: pool.Price, Time: last.OpenTime}, analysis.DirectionShort
			}
		}
	}
	return nil, ""
}
