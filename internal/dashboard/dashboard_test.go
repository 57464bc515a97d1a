package dashboard

import (
	"testing"
	"time"

	"golang.org/x/text/language"

	"agripos/backend/internal/domain"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func saleOf(productID string, name string, qty int, unitPrice int64, unitCost int64, at time.Time) domain.Sale {
	revenue := unitPrice * int64(qty)
	cogs := unitCost * int64(qty)
	return domain.Sale{
		ID:     "sale-" + productID + at.Format("20060102150405"),
		BillID: "BILL-000001",
		Items: []domain.SaleItem{{
			ProductID:         productID,
			Name:              name,
			UnitPriceCents:    unitPrice,
			CostPriceCents:    unitCost,
			Qty:               qty,
			TotalRevenueCents: revenue,
			TotalCostCents:    cogs,
		}},
		SubtotalCents:     revenue,
		TotalRevenueCents: revenue,
		TotalCOGSCents:    cogs,
		ProfitCents:       revenue - cogs,
		CreatedAt:         at,
	}
}

func TestSummarizeRevenueProfitAndMargin(t *testing.T) {
	agg := New(language.English)
	sales := []domain.Sale{
		saleOf("p1", "NPK", 2, 89000, 75000, testNow.Add(-time.Hour)),
		saleOf("p2", "Hoe", 1, 15000, 9500, testNow.Add(-2*time.Hour)),
	}

	summary := agg.Summarize(nil, sales, domain.Period{}, testNow)

	wantRevenue := int64(2*89000 + 15000)
	wantProfit := wantRevenue - int64(2*75000+9500)
	if summary.RevenueCents != wantRevenue {
		t.Fatalf("expected revenue %d, got %d", wantRevenue, summary.RevenueCents)
	}
	if summary.ProfitCents != wantProfit {
		t.Fatalf("expected profit %d, got %d", wantProfit, summary.ProfitCents)
	}
	if summary.BillCount != 2 {
		t.Fatalf("expected 2 bills, got %d", summary.BillCount)
	}

	wantMargin := float64(wantProfit) / float64(wantRevenue) * 100
	if summary.ProfitMargin != wantMargin {
		t.Fatalf("expected margin %f, got %f", wantMargin, summary.ProfitMargin)
	}
}

func TestSummarizeZeroRevenueHasZeroMargin(t *testing.T) {
	agg := New(language.English)
	summary := agg.Summarize(nil, nil, domain.Period{}, testNow)
	if summary.ProfitMargin != 0 {
		t.Fatalf("expected zero margin, got %f", summary.ProfitMargin)
	}
}

func TestSummarizePeriodFilterLeavesStockFiguresUnfiltered(t *testing.T) {
	agg := New(language.English)
	products := []domain.Product{
		{ID: "p1", Name: "NPK", CostPriceCents: 75000, StockQuantity: 4, MinStockThreshold: 10},
	}
	sales := []domain.Sale{
		saleOf("p1", "NPK", 1, 89000, 75000, testNow),
		saleOf("p1", "NPK", 1, 89000, 75000, testNow.AddDate(0, -2, 0)),
	}

	summary := agg.Summarize(products, sales, domain.Period{Day: "2026-08-20"}, testNow)

	if summary.BillCount != 1 {
		t.Fatalf("expected only the matching sale counted, got %d bills", summary.BillCount)
	}
	if summary.InventoryValueCents != 4*75000 {
		t.Fatalf("expected inventory value over all products, got %d", summary.InventoryValueCents)
	}
	if summary.LowStockCount != 1 {
		t.Fatalf("expected one low stock product, got %d", summary.LowStockCount)
	}
}

func TestMatchesPeriod(t *testing.T) {
	at := time.Date(2026, 8, 20, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		period domain.Period
		want   bool
	}{
		{domain.Period{}, true},
		{domain.Period{Day: "2026-08-20"}, true},
		{domain.Period{Day: "2026-08-21"}, false},
		{domain.Period{Month: "2026-08"}, true},
		{domain.Period{Month: "2026-07"}, false},
		{domain.Period{Year: "2026"}, true},
		{domain.Period{Year: "2025"}, false},
	}
	for i, tc := range cases {
		if got := MatchesPeriod(at, tc.period); got != tc.want {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, got)
		}
	}
}

func TestStaleStockWindowAndTotals(t *testing.T) {
	agg := New(language.English)
	products := []domain.Product{
		{ID: "old", Name: "Old Sprayer", CostPriceCents: 45000, StockQuantity: 2, MinStockThreshold: 1},
		{ID: "fresh", Name: "Fresh Seed", CostPriceCents: 28000, StockQuantity: 5, MinStockThreshold: 1},
		{ID: "never", Name: "Never Sold", CostPriceCents: 1000, StockQuantity: 3, MinStockThreshold: 1},
		{ID: "empty", Name: "Empty Shelf", CostPriceCents: 9999, StockQuantity: 0, MinStockThreshold: 1},
	}
	sales := []domain.Sale{
		// 120 days ago is past the 90-day window.
		saleOf("old", "Old Sprayer", 1, 65000, 45000, testNow.AddDate(0, 0, -120)),
		// 10 days ago is recent.
		saleOf("fresh", "Fresh Seed", 1, 35000, 28000, testNow.AddDate(0, 0, -10)),
	}

	summary := agg.Summarize(products, sales, domain.Period{}, testNow)

	if len(summary.StaleStock) != 2 {
		t.Fatalf("expected 2 stale products, got %d", len(summary.StaleStock))
	}
	// Ordered by stock value descending: Old Sprayer (90000) then Never Sold (3000).
	if summary.StaleStock[0].ProductID != "old" || summary.StaleStock[1].ProductID != "never" {
		t.Fatalf("unexpected stale ordering: %+v", summary.StaleStock)
	}
	if summary.StaleStock[0].LastSoldAt == nil {
		t.Fatalf("expected last sold timestamp for a previously sold product")
	}
	if summary.StaleStock[1].LastSoldAt != nil {
		t.Fatalf("expected nil last sold for a never sold product")
	}
	if summary.StaleStockValueCents != 2*45000+3*1000 {
		t.Fatalf("unexpected stale value total %d", summary.StaleStockValueCents)
	}
}

func TestStaleStockKeepsTopThreeByValueButSumsAll(t *testing.T) {
	agg := New(language.English)
	products := []domain.Product{
		{ID: "a", Name: "A", CostPriceCents: 100, StockQuantity: 1},
		{ID: "b", Name: "B", CostPriceCents: 200, StockQuantity: 1},
		{ID: "c", Name: "C", CostPriceCents: 300, StockQuantity: 1},
		{ID: "d", Name: "D", CostPriceCents: 400, StockQuantity: 1},
	}

	summary := agg.Summarize(products, nil, domain.Period{}, testNow)

	if len(summary.StaleStock) != 3 {
		t.Fatalf("expected stale list capped at 3, got %d", len(summary.StaleStock))
	}
	if summary.StaleStock[0].ProductID != "d" {
		t.Fatalf("expected highest value first, got %s", summary.StaleStock[0].ProductID)
	}
	if summary.StaleStockValueCents != 1000 {
		t.Fatalf("expected value over the whole stale set, got %d", summary.StaleStockValueCents)
	}
}

func TestBestSellersCurrentMonthOnly(t *testing.T) {
	agg := New(language.English)
	sales := []domain.Sale{
		saleOf("p1", "NPK", 5, 89000, 75000, testNow.AddDate(0, 0, -1)),
		saleOf("p2", "Hoe", 3, 15000, 9500, testNow.AddDate(0, 0, -2)),
		saleOf("p2", "Hoe", 4, 15000, 9500, testNow.AddDate(0, 0, -3)),
		// Previous month must not count.
		saleOf("p3", "Compost", 99, 18000, 12000, testNow.AddDate(0, -1, 0)),
	}

	summary := agg.Summarize(nil, sales, domain.Period{}, testNow)

	if len(summary.BestSellers) != 2 {
		t.Fatalf("expected 2 best sellers, got %d", len(summary.BestSellers))
	}
	if summary.BestSellers[0].ProductID != "p2" || summary.BestSellers[0].QtySold != 7 {
		t.Fatalf("unexpected top seller %+v", summary.BestSellers[0])
	}
	if summary.BestSellers[1].ProductID != "p1" {
		t.Fatalf("unexpected second seller %+v", summary.BestSellers[1])
	}
}

func TestBestSellersTieBreaksByName(t *testing.T) {
	agg := New(language.English)
	sales := []domain.Sale{
		saleOf("pz", "Zinc Spray", 2, 1000, 500, testNow),
		saleOf("pa", "Ant Bait", 2, 1000, 500, testNow),
	}

	summary := agg.Summarize(nil, sales, domain.Period{}, testNow)

	if summary.BestSellers[0].ProductID != "pa" {
		t.Fatalf("expected tie broken alphabetically, got %+v", summary.BestSellers)
	}
}

func TestCriticalStockOrdering(t *testing.T) {
	agg := New(language.English)
	products := []domain.Product{
		{ID: "low-b", Name: "Urea", StockQuantity: 2, MinStockThreshold: 5},
		{ID: "out-b", Name: "Sprayer", StockQuantity: 0, MinStockThreshold: 3},
		{ID: "ok", Name: "Compost", StockQuantity: 50, MinStockThreshold: 5},
		{ID: "out-a", Name: "Hoe", StockQuantity: 0, MinStockThreshold: 5},
		{ID: "low-a", Name: "Corn Seed", StockQuantity: 1, MinStockThreshold: 5},
	}

	summary := agg.Summarize(products, nil, domain.Period{}, testNow)

	if len(summary.CriticalStock) != 4 {
		t.Fatalf("expected 4 critical products, got %d", len(summary.CriticalStock))
	}
	got := make([]string, 0, 4)
	for _, entry := range summary.CriticalStock {
		got = append(got, entry.ProductID)
	}
	want := []string{"out-a", "out-b", "low-a", "low-b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected critical order %v, want %v", got, want)
		}
	}
	if !summary.CriticalStock[0].OutOfStock {
		t.Fatalf("expected out-of-stock entries first")
	}
}
