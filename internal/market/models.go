package market

// APIResponse represents the quote feed response structure.
type APIResponse struct {
	AsOf   string  `json:"asOf"`
	Quotes []Quote `json:"quotes"`
}

type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
}

// Feed symbols mapped onto snapshot fields.
const (
	symbolNikkei = "NKY"
	symbolSP500F = "ES"
	symbolUSDJPY = "USDJPY"
	symbolUS10Y  = "US10Y"
	symbolVIX    = "VIX"
	symbolGold   = "XAU"
)
