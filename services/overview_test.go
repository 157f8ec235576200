package services

import (
	"context"
	"testing"

	"market-lens/internal/rng"

	"github.com/shopspring/decimal"
)

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1.0K"},
		{52_300_000, "52.3M"},
		{954_200_000, "954.2M"},
		{24_500_000_000, "24.5B"},
	}

	for _, tt := range tests {
		if got := FormatVolume(tt.in); got != tt.want {
			t.Errorf("FormatVolume(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMarketOverview_Indices(t *testing.T) {
	o := NewMarketOverview(NewSyntheticMarketData(rng.New(1)))

	indices := o.Indices()
	if len(indices) != 5 {
		t.Fatalf("expected 5 indices, got %d", len(indices))
	}
	if indices[0].Symbol != "SPY" || !indices[0].Value.Equal(decimal.RequireFromString("451.34")) {
		t.Errorf("unexpected first index %+v", indices[0])
	}
	if indices[4].Symbol != "VIX" || !indices[4].ChangePercent.Equal(decimal.RequireFromString("-3.02")) {
		t.Errorf("unexpected last index %+v", indices[4])
	}

	indices[0].Symbol = "XXX"
	if o.Indices()[0].Symbol != "SPY" {
		t.Error("Indices() should return a copy")
	}
}

func TestMarketOverview_Watchlist(t *testing.T) {
	o := NewMarketOverview(NewSyntheticMarketData(rng.New(1)))

	items := o.Watchlist(context.Background(), []string{"aapl", "", "BTC-USD"})
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}

	if items[0].Symbol != "AAPL" || items[0].Volume != "52.3M" {
		t.Errorf("unexpected AAPL row %+v", items[0])
	}
	if !items[0].PreviousClose.Equal(decimal.RequireFromString("176.15")) {
		t.Errorf("AAPL previous close = %v", items[0].PreviousClose)
	}
	if items[1].Name != "Bitcoin" || items[1].Volume != "24.5B" {
		t.Errorf("unexpected BTC row %+v", items[1])
	}

	snap := o.Snapshot(context.Background(), []string{"MSFT"})
	if len(snap.Indices) != 5 || len(snap.Watchlist) != 1 || snap.UpdatedAt.IsZero() {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Watchlist[0].Name != CompanyName("MSFT") {
		t.Errorf("Name = %q", snap.Watchlist[0].Name)
	}
}
