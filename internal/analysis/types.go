package analysis

import "context"

// Direction of a candidate signal.
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Candle is a single OHLCV bar.
type Candle struct {
	OpenTime int64   `json:"open_time"` // ms since epoch
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Pool is a detected liquidity pool level.
type Pool struct {
	Price float64 `json:"price"`
	Side  string  `json:"side"` // "BUY" or "SELL" side liquidity
}

// Sweep is a detected liquidity sweep event.
type Sweep struct {
	Price float64 `json:"price"`
	Time  int64   `json:"time"`
}

// Structure is a detected market-structure event (e.g. a break of structure).
type Structure struct {
	Kind  string  `json:"kind"`
	Level float64 `json:"level"`
}

// Signal is a raw candidate trade suggestion produced by the engine.
type Signal struct {
	Direction   string  `json:"direction"`
	Score       float64 `json:"score"`
	Reasoning   string  `json:"reasoning"`
	EntryPrice  float64 `json:"entry_price"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`
	ATR         float64 `json:"atr"`
}

// Result is the full output of one analysis pass over a symbol's candles.
// Signal is nil when no candidate setup was found.
type Result struct {
	Pools           []Pool      `json:"pools"`
	Sweeps          []Sweep     `json:"sweeps"`
	Structures      []Structure `json:"structures"`
	Signal          *Signal     `json:"signal,omitempty"`
	HasValidSetup   bool        `json:"has_valid_setup"`
	BlockingReasons []string    `json:"blocking_reasons,omitempty"`
}

// Engine is the contract of the external market-structure analysis engine.
type Engine interface {
	// Analyze evaluates the candles for one symbol and returns zero-or-one
	// candidate signal plus supporting evidence.
	Analyze(ctx context.Context, symbol string, candles []Candle) (Result, error)

	// BaseMinScore returns the engine's unadjusted minimum acceptance score.
	BaseMinScore() float64
}
