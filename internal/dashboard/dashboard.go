package dashboard

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"agripos/backend/internal/domain"
)

// staleAfter is the lookback window for stale stock detection.
const staleAfter = 90 * 24 * time.Hour

const topN = 3

// Aggregator derives dashboard figures from in-memory snapshots of products
// and sales. It holds no state beyond the collator used for the critical
// stock ordering, so one instance serves all requests.
type Aggregator struct {
	collator *collate.Collator
}

// New builds an aggregator ordering product names in the given locale.
func New(tag language.Tag) *Aggregator {
	return &Aggregator{collator: collate.New(tag, collate.IgnoreCase)}
}

// Summarize recomputes the full dashboard. Sales figures honor the period
// filter; stock figures (inventory value, alerts, staleness) always cover
// the complete product set.
func (a *Aggregator) Summarize(products []domain.Product, sales []domain.Sale, period domain.Period, now time.Time) domain.DashboardSummary {
	summary := domain.DashboardSummary{
		StaleStock:    []domain.StaleProduct{},
		BestSellers:   []domain.BestSeller{},
		CriticalStock: []domain.CriticalProduct{},
	}

	var cogs int64
	for _, sale := range sales {
		if !MatchesPeriod(sale.CreatedAt, period) {
			continue
		}
		summary.RevenueCents += sale.TotalRevenueCents
		cogs += sale.TotalCOGSCents
		summary.BillCount++
	}
	summary.ProfitCents = summary.RevenueCents - cogs
	if summary.RevenueCents > 0 {
		summary.ProfitMargin = float64(summary.ProfitCents) / float64(summary.RevenueCents) * 100
	}

	for _, product := range products {
		summary.InventoryValueCents += product.CostPriceCents * int64(product.StockQuantity)
		if product.StockQuantity <= 0 {
			summary.OutOfStockCount++
		} else if product.StockQuantity <= product.MinStockThreshold {
			summary.LowStockCount++
		}
	}

	summary.StaleStock, summary.StaleStockValueCents = a.staleStock(products, sales, now)
	summary.BestSellers = a.bestSellers(sales, now)
	summary.CriticalStock = a.criticalStock(products)

	return summary
}

// MatchesPeriod decomposes the sale timestamp into UTC calendar components
// and compares against the selector. An empty period matches everything.
func MatchesPeriod(at time.Time, period domain.Period) bool {
	at = at.UTC()
	switch {
	case period.Day != "":
		return at.Format("2006-01-02") == period.Day
	case period.Month != "":
		return at.Format("2006-01") == period.Month
	case period.Year != "":
		return at.Format("2006") == period.Year
	default:
		return true
	}
}

// staleStock lists products with positive stock whose most recent sale is
// absent or older than the lookback window. The returned slice is the top
// entries by stock value; the value sum covers the whole stale set.
func (a *Aggregator) staleStock(products []domain.Product, sales []domain.Sale, now time.Time) ([]domain.StaleProduct, int64) {
	lastSold := make(map[string]time.Time)
	for _, sale := range sales {
		for _, item := range sale.Items {
			if prev, ok := lastSold[item.ProductID]; !ok || sale.CreatedAt.After(prev) {
				lastSold[item.ProductID] = sale.CreatedAt
			}
		}
	}

	cutoff := now.Add(-staleAfter)
	stale := make([]domain.StaleProduct, 0)
	var totalValue int64
	for _, product := range products {
		if product.StockQuantity <= 0 {
			continue
		}
		entry := domain.StaleProduct{
			ProductID:       product.ID,
			Name:            product.Name,
			StockQuantity:   product.StockQuantity,
			StockValueCents: product.CostPriceCents * int64(product.StockQuantity),
		}
		if at, ok := lastSold[product.ID]; ok {
			if at.After(cutoff) {
				continue
			}
			soldAt := at
			entry.LastSoldAt = &soldAt
		}
		stale = append(stale, entry)
		totalValue += entry.StockValueCents
	}

	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].StockValueCents > stale[j].StockValueCents
	})
	if len(stale) > topN {
		stale = stale[:topN]
	}
	return stale, totalValue
}

// bestSellers sums quantities sold in the current calendar month and keeps
// the top entries by quantity.
func (a *Aggregator) bestSellers(sales []domain.Sale, now time.Time) []domain.BestSeller {
	month := now.UTC().Format("2006-01")
	qty := make(map[string]int)
	names := make(map[string]string)
	for _, sale := range sales {
		if sale.CreatedAt.UTC().Format("2006-01") != month {
			continue
		}
		for _, item := range sale.Items {
			qty[item.ProductID] += item.Qty
			names[item.ProductID] = item.Name
		}
	}

	sellers := make([]domain.BestSeller, 0, len(qty))
	for id, sold := range qty {
		sellers = append(sellers, domain.BestSeller{ProductID: id, Name: names[id], QtySold: sold})
	}
	sort.SliceStable(sellers, func(i, j int) bool {
		if sellers[i].QtySold != sellers[j].QtySold {
			return sellers[i].QtySold > sellers[j].QtySold
		}
		return a.collator.CompareString(sellers[i].Name, sellers[j].Name) < 0
	})
	if len(sellers) > topN {
		sellers = sellers[:topN]
	}
	return sellers
}

// criticalStock unions out-of-stock and low-stock products, out-of-stock
// first, alphabetical within each group.
func (a *Aggregator) criticalStock(products []domain.Product) []domain.CriticalProduct {
	critical := make([]domain.CriticalProduct, 0)
	for _, product := range products {
		out := product.StockQuantity <= 0
		low := !out && product.StockQuantity <= product.MinStockThreshold
		if !out && !low {
			continue
		}
		critical = append(critical, domain.CriticalProduct{
			ProductID:         product.ID,
			Name:              product.Name,
			StockQuantity:     product.StockQuantity,
			MinStockThreshold: product.MinStockThreshold,
			OutOfStock:        out,
		})
	}
	sort.SliceStable(critical, func(i, j int) bool {
		if critical[i].OutOfStock != critical[j].OutOfStock {
			return critical[i].OutOfStock
		}
		return a.collator.CompareString(critical[i].Name, critical[j].Name) < 0
	})
	return critical
}
