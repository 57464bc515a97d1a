package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agripos/backend/internal/domain"
	"agripos/backend/internal/store"
)

func seedOne(t *testing.T, s *Store) domain.Product {
	t.Helper()

	now := time.Now().UTC()
	created, err := s.CreateProduct(context.Background(), domain.Product{
		ID:                "prod-test",
		Name:              "NPK 15-15-15 50kg",
		CostPriceCents:    75000,
		SellingPriceCents: 89000,
		StockQuantity:     3,
		MinStockThreshold: 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return *created
}

func TestDeductStockFloorsAtZero(t *testing.T) {
	s := New()
	product := seedOne(t, s)

	// Deducting more than the current stock floors at zero, never negative.
	after, err := s.DeductStock(context.Background(), product.ID, product.StockQuantity+5)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if after.StockQuantity != 0 {
		t.Fatalf("expected stock floored at 0, got %d", after.StockQuantity)
	}

	// Deducting from an already empty product stays at zero.
	after, err = s.DeductStock(context.Background(), product.ID, 1)
	if err != nil {
		t.Fatalf("second deduct failed: %v", err)
	}
	if after.StockQuantity != 0 {
		t.Fatalf("expected stock to stay 0, got %d", after.StockQuantity)
	}
}

func TestDeductStockExactAndPartial(t *testing.T) {
	s := New()
	product := seedOne(t, s)

	after, err := s.DeductStock(context.Background(), product.ID, 2)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if after.StockQuantity != 1 {
		t.Fatalf("expected stock 1, got %d", after.StockQuantity)
	}

	after, err = s.DeductStock(context.Background(), product.ID, 1)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if after.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", after.StockQuantity)
	}
}

func TestDeductStockUnknownProduct(t *testing.T) {
	s := New()

	if _, err := s.DeductStock(context.Background(), "prod-missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReceiveStockAddsAndOverwritesCost(t *testing.T) {
	s := New()
	product := seedOne(t, s)

	after, err := s.ReceiveStock(context.Background(), product.ID, 20, 78000)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if after.StockQuantity != product.StockQuantity+20 {
		t.Fatalf("expected stock %d, got %d", product.StockQuantity+20, after.StockQuantity)
	}
	// The new unit cost replaces the old cost outright, no averaging.
	if after.CostPriceCents != 78000 {
		t.Fatalf("expected cost overwritten to 78000, got %d", after.CostPriceCents)
	}

	// A later cheaper receipt overwrites again.
	after, err = s.ReceiveStock(context.Background(), product.ID, 5, 60000)
	if err != nil {
		t.Fatalf("second receive failed: %v", err)
	}
	if after.CostPriceCents != 60000 {
		t.Fatalf("expected cost overwritten to 60000, got %d", after.CostPriceCents)
	}
}

func TestReceiveStockUnknownProduct(t *testing.T) {
	s := New()

	if _, err := s.ReceiveStock(context.Background(), "prod-missing", 1, 1000); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetSaleByID(t *testing.T) {
	s := New()

	sale := domain.Sale{
		ID:     "sale-1",
		BillID: "BILL-000001",
		Items: []domain.SaleItem{{
			ProductID: "prod-test", Name: "NPK", UnitPriceCents: 89000,
			CostPriceCents: 75000, Qty: 1, TotalRevenueCents: 89000, TotalCostCents: 75000,
		}},
		SubtotalCents:     89000,
		TotalRevenueCents: 89000,
		TotalCOGSCents:    75000,
		ProfitCents:       14000,
		CreatedAt:         time.Now().UTC(),
	}
	if _, err := s.CreateSale(context.Background(), sale); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	got, err := s.GetSaleByID(context.Background(), "sale-1")
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if got.BillID != "BILL-000001" || len(got.Items) != 1 {
		t.Fatalf("unexpected sale %+v", got)
	}

	// The returned sale is a copy; mutating it must not touch the store.
	got.Items[0].Qty = 99
	again, err := s.GetSaleByID(context.Background(), "sale-1")
	if err != nil {
		t.Fatalf("re-get sale failed: %v", err)
	}
	if again.Items[0].Qty != 1 {
		t.Fatalf("expected stored sale unchanged, got qty %d", again.Items[0].Qty)
	}

	if _, err := s.GetSaleByID(context.Background(), "sale-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
