package yahoo

// ChartResponse is the top-level container of /v8/finance/chart/{symbol}.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the error object Yahoo embeds in failed chart responses.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's series.
type ChartResult struct {
	Meta       Meta       `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Events     Events     `json:"events"`
	Indicators Indicators `json:"indicators"`
}

// Meta describes the listing, including its exchange time zone.
type Meta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	GMTOffset            int    `json:"gmtoffset"`
}

// Events holds corporate actions keyed by their Unix timestamp.
type Events struct {
	Dividends map[string]Dividend `json:"dividends"`
	Splits    map[string]Split    `json:"splits"`
}

// Dividend is a cash distribution per share.
type Dividend struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

// Split is a share split of Numerator for Denominator.
type Split struct {
	Date        int64   `json:"date"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// Indicators carries the OHLCV arrays. Entries are null on halted sessions,
// hence the pointers.
type Indicators struct {
	Quote    []Quote    `json:"quote"`
	AdjClose []AdjClose `json:"adjclose"`
}

// Quote carries the raw OHLCV columns.
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// AdjClose is the close back-adjusted for splits and dividends.
type AdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}
