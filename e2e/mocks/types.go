package mocks

// GlobalQuote is the payload of a GLOBAL_QUOTE response. Alpha Vantage
// encodes every number as a string.
type GlobalQuote struct {
	Symbol        string `json:"01. symbol"`
	Open          string `json:"02. open"`
	High          string `json:"03. high"`
	Low           string `json:"04. low"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	LatestDay     string `json:"07. latest trading day"`
	PreviousClose string `json:"08. previous close"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

// DailyBar is one entry of a "Time Series (Daily)" map
type DailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// ExchangeRate is the payload of a CURRENCY_EXCHANGE_RATE response
type ExchangeRate struct {
	From string `json:"1. From_Currency Code"`
	To   string `json:"3. To_Currency Code"`
	Rate string `json:"5. Exchange Rate"`
}

// Failure selects how the mock misbehaves
type Failure int

const (
	// FailNone serves fixtures
	FailNone Failure = iota
	// FailRateLimit answers 200 with a "Note" body, like the free tier does
	FailRateLimit
	// FailNotFound answers 200 with an "Error Message" body
	FailNotFound
	// FailUnavailable answers 503
	FailUnavailable
)
