package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"market-lens/models"
)

type newsFixture struct {
	title     string
	source    string
	age       time.Duration
	summary   string
	sentiment models.Sentiment
}

var baseNews = []newsFixture{
	{"Fed Signals Potential Rate Cuts as Inflation Cools", "Financial Times", 2 * time.Hour,
		"The Federal Reserve has indicated it may begin cutting interest rates in the coming months as inflation shows signs of returning to the 2% target.",
		models.SentimentPositive},
	{"Global Markets Rally on Strong Economic Data", "Wall Street Journal", 5 * time.Hour,
		"Stock markets worldwide surged today following better-than-expected economic indicators from the US, Europe, and China.",
		models.SentimentPositive},
	{"Treasury Yields Fall as Investors Seek Safety", "Bloomberg", 8 * time.Hour,
		"U.S. Treasury yields declined sharply as investors moved to safe-haven assets amid growing concerns about global economic growth.",
		models.SentimentNegative},
	{"Oil Prices Surge on Supply Concerns", "Reuters", 12 * time.Hour,
		"Crude oil prices jumped more than 3% today after reports of production disruptions in key oil-producing regions.",
		models.SentimentNeutral},
	{"Retail Sales Beat Expectations, Consumer Spending Remains Strong", "CNBC", 24 * time.Hour,
		"U.S. retail sales rose more than expected last month, indicating that consumer spending remains resilient despite economic headwinds.",
		models.SentimentPositive},
	{"Tech Sector Leads Market Gains as AI Investments Accelerate", "TechCrunch", 36 * time.Hour,
		"Technology stocks outperformed the broader market today as companies continue to increase investments in artificial intelligence capabilities.",
		models.SentimentPositive},
	{"Housing Market Shows Signs of Cooling as Mortgage Rates Rise", "MarketWatch", 48 * time.Hour,
		"The U.S. housing market is showing signs of slowing down as mortgage rates climb to their highest levels in over a decade.",
		models.SentimentNegative},
	{"Cryptocurrency Market Volatility Increases as Regulatory Scrutiny Intensifies", "CoinDesk", 60 * time.Hour,
		"Digital asset markets experienced heightened volatility this week as regulators worldwide signal tougher oversight of the cryptocurrency industry.",
		models.SentimentNegative},
	{"Manufacturing Activity Expands for Third Consecutive Month", "The Economist", 72 * time.Hour,
		"The manufacturing sector continued its expansion for the third straight month, according to the latest PMI data, suggesting a resilient industrial economy.",
		models.SentimentPositive},
	{"Corporate Earnings Season Begins with Mixed Results", "Barron's", 96 * time.Hour,
		"The quarterly earnings season kicked off with mixed results as companies navigate challenging macroeconomic conditions and persistent inflation.",
		models.SentimentNeutral},
}

var symbolNews = map[string][]newsFixture{
	"AAPL": {
		{"Apple Unveils Next-Generation iPhone with Advanced AI Features", "TechCrunch", 3 * time.Hour,
			"Apple has announced its latest iPhone model featuring enhanced AI capabilities and improved battery life, setting new standards for the smartphone industry.",
			models.SentimentPositive},
		{"Apple's Services Revenue Reaches All-Time High", "CNBC", 18 * time.Hour,
			"Apple reported record-breaking services revenue in its latest quarterly results, highlighting the company's successful transition beyond hardware sales.",
			models.SentimentPositive},
		{"Apple Faces Antitrust Scrutiny Over App Store Policies", "Wall Street Journal", 30 * time.Hour,
			"Regulators are intensifying their investigation into Apple's App Store practices, potentially threatening a key revenue stream for the tech giant.",
			models.SentimentNegative},
	},
	"TSLA": {
		{"Tesla Delivers Record Number of Vehicles in Latest Quarter", "Reuters", 4 * time.Hour,
			"Tesla has reported record-breaking vehicle deliveries for the quarter, exceeding analyst expectations and demonstrating strong demand for electric vehicles.",
			models.SentimentPositive},
		{"Tesla Expands Gigafactory Capacity to Meet Growing Demand", "Bloomberg", 22 * time.Hour,
			"Tesla announced plans to significantly expand production capacity at its Gigafactories worldwide to address the increasing demand for its electric vehicles.",
			models.SentimentPositive},
		{"Tesla Faces Increased Competition in EV Market", "Financial Times", 40 * time.Hour,
			"Tesla's market share in the electric vehicle sector is under pressure as traditional automakers and new entrants ramp up their EV offerings.",
			models.SentimentNegative},
	},
	"BTC-USD": {
		{"Bitcoin Surges Past $30,000 as Institutional Adoption Grows", "CoinDesk", 6 * time.Hour,
			"Bitcoin has broken through the $30,000 barrier as more institutional investors add the cryptocurrency to their portfolios, signaling growing mainstream acceptance.",
			models.SentimentPositive},
		{"Major Bank Launches Bitcoin Custody Services for Institutional Clients", "Bloomberg", 26 * time.Hour,
			"A leading global bank has announced the launch of Bitcoin custody services for its institutional clients, marking another milestone in cryptocurrency adoption.",
			models.SentimentPositive},
		{"Bitcoin Mining Difficulty Reaches All-Time High", "CryptoNews", 38 * time.Hour,
			"The difficulty of mining Bitcoin has reached a new record high, potentially impacting profitability for miners as competition intensifies.",
			models.SentimentNeutral},
	},
}

// NewsFixtures serves a static headline feed with timestamps relative to the call time
type NewsFixtures struct {
	now func() time.Time
}

// NewNewsFixtures creates the fixture news provider
func NewNewsFixtures() *NewsFixtures {
	return &NewsFixtures{now: time.Now}
}

// GetNews returns up to limit headlines, newest first. Symbols with a
// supplement get their own items merged into the general feed.
func (n *NewsFixtures) GetNews(ctx context.Context, symbol string, limit int) []models.NewsItem {
	if limit <= 0 {
		return []models.NewsItem{}
	}

	fixtures := baseNews
	if extra, ok := symbolNews[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		fixtures = make([]newsFixture, 0, len(extra)+len(baseNews))
		fixtures = append(fixtures, extra...)
		fixtures = append(fixtures, baseNews...)
	}

	now := n.now()
	items := make([]models.NewsItem, 0, len(fixtures))
	for _, f := range fixtures {
		items = append(items, models.NewsItem{
			Title:       f.title,
			URL:         "#",
			Source:      f.source,
			PublishedAt: now.Add(-f.age),
			Summary:     f.summary,
			Sentiment:   f.sentiment,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
