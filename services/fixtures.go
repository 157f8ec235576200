package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stockFixture struct {
	price, change, changePercent decimal.Decimal
	volume                       int64
	marketCap                    decimal.Decimal
	peRatio, high52, low52       decimal.Decimal
	open                         decimal.Decimal
}

type cryptoFixture struct {
	price, change, changePercent decimal.Decimal
	volume                       int64
	marketCap                    decimal.Decimal
	supply                       int64
	high24h, low24h              decimal.Decimal
}

// Known equities. Open equals previous close.
var stockFixtures = map[string]stockFixture{
	"AAPL":  {dec("178.72"), dec("2.57"), dec("1.45"), 52_300_000, dec("2800000000000"), dec("29.8"), dec("182.94"), dec("124.17"), dec("176.15")},
	"MSFT":  {dec("332.42"), dec("2.86"), dec("0.87"), 23_100_000, dec("2470000000000"), dec("35.2"), dec("338.56"), dec("213.43"), dec("329.56")},
	"GOOGL": {dec("137.14"), dec("-0.44"), dec("-0.32"), 18_700_000, dec("1730000000000"), dec("26.4"), dec("142.38"), dec("83.34"), dec("137.58")},
	"AMZN":  {dec("131.69"), dec("2.75"), dec("2.13"), 35_200_000, dec("1350000000000"), dec("102.1"), dec("145.86"), dec("81.43"), dec("129.12")},
	"TSLA":  {dec("242.68"), dec("-4.40"), dec("-1.78"), 41_900_000, dec("770000000000"), dec("78.3"), dec("299.29"), dec("101.81"), dec("247.08")},
	"META":  {dec("312.81"), dec("3.79"), dec("1.23"), 15_800_000, dec("803000000000"), dec("27.5"), dec("326.20"), dec("88.09"), dec("309.02")},
	"NVDA":  {dec("425.03"), dec("11.86"), dec("2.87"), 32_600_000, dec("1050000000000"), dec("65.8"), dec("439.90"), dec("108.13"), dec("413.17")},
}

var cryptoFixtures = map[string]cryptoFixture{
	"BTC-USD": {dec("28456.32"), dec("892.45"), dec("3.21"), 24_500_000_000, dec("550000000000"), 19_318_000, dec("28750.15"), dec("27572.15")},
	"ETH-USD": {dec("1642.18"), dec("40.67"), dec("2.54"), 12_100_000_000, dec("197000000000"), 120_000_000, dec("1658.92"), dec("1601.54")},
	"SOL-USD": {dec("32.47"), dec("1.58"), dec("5.12"), 1_800_000_000, dec("13000000000"), 400_000_000, dec("32.89"), dec("30.89")},
	"BNB-USD": {dec("215.63"), dec("3.96"), dec("1.87"), 954_200_000, dec("33000000000"), 153_000_000, dec("217.45"), dec("211.67")},
	"XRP-USD": {dec("0.5423"), dec("-0.0042"), dec("-0.78"), 1_200_000_000, dec("28500000000"), 52_500_000_000, dec("0.5465"), dec("0.5321")},
}

var companyNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corp.",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com Inc.",
	"TSLA":  "Tesla Inc.",
	"META":  "Meta Platforms Inc.",
	"NVDA":  "NVIDIA Corp.",
	"JPM":   "JPMorgan Chase & Co.",
	"V":     "Visa Inc.",
	"WMT":   "Walmart Inc.",
	"JNJ":   "Johnson & Johnson",
	"PG":    "Procter & Gamble Co.",
	"MA":    "Mastercard Inc.",
	"UNH":   "UnitedHealth Group Inc.",
	"HD":    "Home Depot Inc.",
	"BAC":   "Bank of America Corp.",
	"XOM":   "Exxon Mobil Corp.",
	"DIS":   "Walt Disney Co.",
	"NFLX":  "Netflix Inc.",
	"CSCO":  "Cisco Systems Inc.",
}

var cryptoNames = map[string]string{
	"BTC-USD":   "Bitcoin",
	"ETH-USD":   "Ethereum",
	"SOL-USD":   "Solana",
	"BNB-USD":   "Binance Coin",
	"XRP-USD":   "Ripple",
	"ADA-USD":   "Cardano",
	"DOGE-USD":  "Dogecoin",
	"DOT-USD":   "Polkadot",
	"AVAX-USD":  "Avalanche",
	"MATIC-USD": "Polygon",
}

// Starting prices of the synthetic random walk
var seriesBasePrices = map[string]float64{
	"AAPL":    175,
	"MSFT":    330,
	"GOOGL":   135,
	"AMZN":    130,
	"TSLA":    240,
	"META":    310,
	"NVDA":    420,
	"BTC-USD": 28000,
	"ETH-USD": 1600,
	"SOL-USD": 32,
	"BNB-USD": 215,
	"XRP-USD": 0.54,
}

const defaultSeriesBasePrice = 100.0

// CompanyName returns the display name of an equity symbol
func CompanyName(symbol string) string {
	if name, ok := companyNames[symbol]; ok {
		return name
	}
	return symbol + " Stock"
}

// CryptoName returns the display name of a crypto pair
func CryptoName(symbol string) string {
	if name, ok := cryptoNames[symbol]; ok {
		return name
	}
	base, _, _ := strings.Cut(symbol, "-")
	return base
}

// KnownSymbol is one entry of the built-in symbol directory
type KnownSymbol struct {
	Symbol string
	Name   string
	Crypto bool
}

// KnownSymbols lists every equity and crypto pair the fixture tables name
func KnownSymbols() []KnownSymbol {
	out := make([]KnownSymbol, 0, len(companyNames)+len(cryptoNames))
	for sym, name := range companyNames {
		out = append(out, KnownSymbol{Symbol: sym, Name: name})
	}
	for sym, name := range cryptoNames {
		out = append(out, KnownSymbol{Symbol: sym, Name: name, Crypto: true})
	}
	return out
}
