package domain

import "time"

// Snapshot is one observation of the macro market, supplied to a publish
// cycle by the snapshot provider.
type Snapshot struct {
	Score       float64   `json:"score"` // composite macro score, -100..100
	Nikkei225   float64   `json:"nikkei_225"`
	SP500Future float64   `json:"sp500_future"`
	USDJPY      float64   `json:"usd_jpy"`
	US10Y       float64   `json:"us_10y"`
	VIX         float64   `json:"vix"`
	Gold        float64   `json:"gold"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// SlotMatch is a candidate publication produced by one scheduler
// evaluation. Phase is 1-based and identifies which of the language's
// daily slots matched.
type SlotMatch struct {
	Language string
	Phase    int
	Forced   bool
}
