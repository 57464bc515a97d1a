// Package memory provides an in-process Repository used by tests and by
// deployments that run without PostgreSQL. All data is lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"agripos/backend/internal/domain"
	"agripos/backend/internal/store"
	"agripos/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
	receipts   map[string]domain.GoodsReceipt
	sales      map[string]domain.Sale
	config     *domain.AdminConfig
	users      map[string]domain.UserAccount
	audits     []domain.AuditEntry
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		receipts:   make(map[string]domain.GoodsReceipt),
		sales:      make(map[string]domain.Sale),
		users:      make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small agri-shop catalog so the
// API is usable immediately without PostgreSQL.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seeds := []struct {
		category string
		products []domain.Product
	}{
		{
			category: "Fertilizer",
			products: []domain.Product{
				{Name: "NPK 15-15-15 50kg", CostPriceCents: 75000, SellingPriceCents: 89000, StockQuantity: 40, MinStockThreshold: 10},
				{Name: "Urea 46-0-0 50kg", CostPriceCents: 68000, SellingPriceCents: 82000, StockQuantity: 25, MinStockThreshold: 8},
				{Name: "Organic Compost 20kg", CostPriceCents: 12000, SellingPriceCents: 18000, StockQuantity: 60, MinStockThreshold: 15},
			},
		},
		{
			category: "Seeds",
			products: []domain.Product{
				{Name: "Rice Seed RD41 25kg", CostPriceCents: 52500, SellingPriceCents: 62500, StockQuantity: 30, MinStockThreshold: 6},
				{Name: "Sweet Corn Seed 1kg", CostPriceCents: 28000, SellingPriceCents: 35000, StockQuantity: 18, MinStockThreshold: 5},
			},
		},
		{
			category: "Equipment",
			products: []domain.Product{
				{Name: "Knapsack Sprayer 20L", CostPriceCents: 45000, SellingPriceCents: 65000, StockQuantity: 12, MinStockThreshold: 3},
				{Name: "Garden Hoe", CostPriceCents: 9500, SellingPriceCents: 15000, StockQuantity: 20, MinStockThreshold: 5},
			},
		},
	}

	for _, seed := range seeds {
		category := domain.Category{ID: xid.New("cat"), Name: seed.category, CreatedAt: now}
		s.categories[category.ID] = category
		for _, product := range seed.products {
			product.ID = xid.New("prod")
			product.CategoryID = category.ID
			product.CreatedAt = now
			product.UpdatedAt = now
			s.products[product.ID] = product
		}
	}

	// Dev credentials; the auth layer upgrades the plain password to a
	// bcrypt hash on first login.
	s.users["admin"] = domain.UserAccount{
		Username:  "admin",
		Password:  "admin123",
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: now,
	}

	return s
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, category)
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[category.ID] = category
	copied := category
	return &copied, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[category.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.categories[category.ID] = category
	copied := category
	return &copied, nil
}

// DeleteCategory removes only the category document. Products keep their
// dangling categoryId; the reference is weak.
func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// DeductStock floors at zero. An oversized deduction silently discards the
// remainder instead of failing.
func (s *Store) DeductStock(_ context.Context, productID string, qty int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.StockQuantity -= qty
	if product.StockQuantity < 0 {
		product.StockQuantity = 0
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	copied := product
	return &copied, nil
}

// ReceiveStock adds to stock and overwrites the cost price with the latest
// receipt's unit cost. Last receipt wins; there is no weighted averaging.
func (s *Store) ReceiveStock(_ context.Context, productID string, qty int, unitCostCents int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.StockQuantity += qty
	product.CostPriceCents = unitCostCents
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	copied := product
	return &copied, nil
}

func (s *Store) ListReceipts(_ context.Context) ([]domain.GoodsReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GoodsReceipt, 0, len(s.receipts))
	for _, receipt := range s.receipts {
		out = append(out, receipt)
	}
	slices.SortFunc(out, func(a, b domain.GoodsReceipt) int {
		if c := cmpTimeDesc(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateReceipt(_ context.Context, receipt domain.GoodsReceipt) (*domain.GoodsReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts[receipt.ID] = receipt
	copied := receipt
	return &copied, nil
}

func (s *Store) DeleteReceipt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.receipts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.receipts, id)
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := cmpTimeDesc(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sales[sale.ID] = cloneSale(sale)
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sales, id)
	return nil
}

func (s *Store) GetAdminConfig(_ context.Context) (*domain.AdminConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, store.ErrNotFound
	}
	copied := *s.config
	return &copied, nil
}

func (s *Store) SetAdminConfig(_ context.Context, config domain.AdminConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := config
	s.config = &copied
	return nil
}

func (s *Store) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = make(map[string]domain.Category)
	s.products = make(map[string]domain.Product)
	s.receipts = make(map[string]domain.GoodsReceipt)
	s.sales = make(map[string]domain.Sale)
	s.config = nil
	return nil
}

func (s *Store) CreateAuditEntry(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits = append(s.audits, entry)
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, len(s.audits))
	copy(out, s.audits)
	slices.SortFunc(out, func(a, b domain.AuditEntry) int {
		return cmpTimeDesc(a.CreatedAt, b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copied.Items, sale.Items)
	return copied
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpTimeDesc(a time.Time, b time.Time) int {
	switch {
	case a.After(b):
		return -1
	case b.After(a):
		return 1
	default:
		return 0
	}
}
