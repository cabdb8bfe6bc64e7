package market

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"signal-monitor-go/internal/analysis"
	"signal-monitor-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CandleProvider defines the interface for fetching recent candles.
type CandleProvider interface {
	RecentCandles(ctx context.Context, symbol string, limit int) ([]analysis.Candle, error)
}

// RestClient is a rate-limited client for a Binance-style market data REST API.
// It implements CandleProvider.
type RestClient struct {
	client   *resty.Client
	interval string
	logger   *zap.Logger
	limiter  *rate.Limiter
}

// ensure RestClient implements the interface
var _ CandleProvider = (*RestClient)(nil)

// NewRestClient creates a new market data REST client.
func NewRestClient(cfg *config.Market, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:   client,
		interval: cfg.CandleInterval,
		logger:   logger,
		limiter:  limiter,
	}
}

// ServerTime fetches the current server time.
// This is a good endpoint to test connectivity.
func (c *RestClient) ServerTime(ctx context.Context) (int64, error) {
	type serverTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetResult(&serverTimeResponse{})

	resp, err := c.doRequest(ctx, "GET", "/time", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*serverTimeResponse)
	return result.ServerTime, nil
}

// RecentCandles fetches the most recent klines for a symbol.
func (c *RestClient) RecentCandles(ctx context.Context, symbol string, limit int) ([]analysis.Candle, error) {
	// Klines come back as a JSON array of mixed-type arrays:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var raw [][]any

	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": c.interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&raw).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, "GET", "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get candles for %s: %w", symbol, err)
	}

	result := resp.Result().(*[][]any)
	candles := make([]analysis.Candle, 0, len(*result))
	for _, row := range *result {
		candle, err := parseKline(row)
		if err != nil {
			c.logger.Warn("Skipping malformed kline row",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseKline converts one raw kline row into a Candle.
func parseKline(row []any) (analysis.Candle, error) {
	if len(row) < 6 {
		return analysis.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return analysis.Candle{}, fmt.Errorf("kline open time is not numeric")
	}

	values := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return analysis.Candle{}, fmt.Errorf("kline field %d is not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return analysis.Candle{}, fmt.Errorf("failed to parse kline field %d: %w", i, err)
		}
		values[i-1] = v
	}

	return analysis.Candle{
		OpenTime: int64(openTime),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
