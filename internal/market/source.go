package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"macropulse/internal/domain"
)

// Config holds quote feed configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches the macro quote set and condenses it into a Snapshot.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "market"),
	}
}

// Fetch retrieves the current quotes with bounded retry and returns the
// derived snapshot.
func (s *Source) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	var resp *APIResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx)
		if err == nil {
			return s.transform(resp), nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("quote request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Macropulse/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// Risk-on weights per symbol: equities and carry push the score up,
// volatility and safe havens pull it down.
var scoreWeights = map[string]float64{
	symbolNikkei: 30,
	symbolSP500F: 25,
	symbolUSDJPY: 15,
	symbolUS10Y:  -10,
	symbolVIX:    -15,
	symbolGold:   -5,
}

func (s *Source) transform(resp *APIResponse) *domain.Snapshot {
	snapshot := &domain.Snapshot{FetchedAt: time.Now().UTC()}

	var score float64
	for _, q := range resp.Quotes {
		switch q.Symbol {
		case symbolNikkei:
			snapshot.Nikkei225 = q.Price
		case symbolSP500F:
			snapshot.SP500Future = q.Price
		case symbolUSDJPY:
			snapshot.USDJPY = q.Price
		case symbolUS10Y:
			snapshot.US10Y = q.Price
		case symbolVIX:
			snapshot.VIX = q.Price
		case symbolGold:
			snapshot.Gold = q.Price
		default:
			s.logger.Debug("ignoring unknown symbol", "symbol", q.Symbol)
			continue
		}
		score += scoreWeights[q.Symbol] * q.ChangePercent
	}

	snapshot.Score = clamp(score, -100, 100)
	return snapshot
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
