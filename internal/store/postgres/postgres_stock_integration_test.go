package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestStockAdjustmentsAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("AGRIPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set AGRIPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-stock-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, cost_price_cents, selling_price_cents, category_id, stock_quantity, min_stock_threshold, created_at, updated_at)
		VALUES ($1, 'Integration Fertilizer', 50000, 65000, null, 5, 2, $2, $2)
	`, productID, now); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	// Receiving stock adds quantity and replaces the cost price outright.
	received, err := s.ReceiveStock(ctx, productID, 10, 52000)
	if err != nil {
		t.Fatalf("receive stock: %v", err)
	}
	if received.StockQuantity != 15 {
		t.Fatalf("expected stock 15 after receive, got %d", received.StockQuantity)
	}
	if received.CostPriceCents != 52000 {
		t.Fatalf("expected cost 52000 after receive, got %d", received.CostPriceCents)
	}

	// Deducting never goes below zero, even when oversold.
	deducted, err := s.DeductStock(ctx, productID, 999)
	if err != nil {
		t.Fatalf("deduct stock: %v", err)
	}
	if deducted.StockQuantity != 0 {
		t.Fatalf("expected stock floored at 0, got %d", deducted.StockQuantity)
	}
}
