package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"agripos/backend/internal/bill"
	"agripos/backend/internal/cache"
	"agripos/backend/internal/dashboard"
	"agripos/backend/internal/domain"
	"agripos/backend/internal/live"
	"agripos/backend/internal/store"
	"agripos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service owns the business rules: stock adjustment side effects, the PIN
// gate in front of destructive operations, and dashboard derivation. All
// writes publish a change event and drop cached summaries.
type Service struct {
	repo       store.Repository
	aggregator *dashboard.Aggregator
	summaries  cache.SummaryCache
	hub        *live.Hub
	summaryTTL time.Duration
}

func New(repo store.Repository, aggregator *dashboard.Aggregator, summaries cache.SummaryCache, hub *live.Hub, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if hub == nil {
		hub = live.NewHub()
	}
	if summaryTTL <= 0 {
		summaryTTL = 20 * time.Second
	}

	return &Service{
		repo:       repo,
		aggregator: aggregator,
		summaries:  summaries,
		hub:        hub,
		summaryTTL: summaryTTL,
	}
}

// Hub exposes the change feed for subscription consumers.
func (s *Service) Hub() *live.Hub {
	return s.hub
}

// Categories.

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", store.ErrInvalidInput)
	}

	category := domain.Category{
		ID:        xid.New("cat"),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_create", "category", created.ID, created.Name)
	s.publish(live.Categories, live.ActionCreated, created.ID)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryUpdateRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if id == "" || name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", store.ErrInvalidInput)
	}

	existing, err := s.getCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	existing.Name = name
	updated, err := s.repo.UpdateCategory(ctx, *existing)
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_update", "category", updated.ID, updated.Name)
	s.publish(live.Categories, live.ActionUpdated, updated.ID)
	return *updated, nil
}

// DeleteCategory is PIN gated. Products referencing the category keep their
// dangling categoryId.
func (s *Service) DeleteCategory(ctx context.Context, id string, pin string) error {
	if err := s.requirePIN(ctx, pin); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "category_delete", "category", id, "")
	s.publish(live.Categories, live.ActionDeleted, id)
	return nil
}

func (s *Service) getCategory(ctx context.Context, id string) (*domain.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// Products.

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
	}
	if req.CostPriceCents < 0 || req.SellingPriceCents < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
	}
	if req.StockQuantity < 0 || req.MinStockThreshold < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock figures must not be negative", store.ErrInvalidInput)
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:                xid.New("prod"),
		Name:              req.Name,
		CostPriceCents:    req.CostPriceCents,
		SellingPriceCents: req.SellingPriceCents,
		CategoryID:        strings.TrimSpace(req.CategoryID),
		StockQuantity:     req.StockQuantity,
		MinStockThreshold: req.MinStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,stock=%d", created.Name, created.StockQuantity))
	s.publish(live.Products, live.ActionCreated, created.ID)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", store.ErrInvalidInput)
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
		}
		existing.Name = name
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
		}
		existing.CostPriceCents = *req.CostPriceCents
	}
	if req.SellingPriceCents != nil {
		if *req.SellingPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
		}
		existing.SellingPriceCents = *req.SellingPriceCents
	}
	if req.CategoryID != nil {
		existing.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return domain.Product{}, fmt.Errorf("%w: stock figures must not be negative", store.ErrInvalidInput)
		}
		existing.StockQuantity = *req.StockQuantity
	}
	if req.MinStockThreshold != nil {
		if *req.MinStockThreshold < 0 {
			return domain.Product{}, fmt.Errorf("%w: stock figures must not be negative", store.ErrInvalidInput)
		}
		existing.MinStockThreshold = *req.MinStockThreshold
	}

	updated, err := s.repo.UpdateProduct(ctx, *existing)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", updated.ID, fmt.Sprintf("name=%s,stock=%d", updated.Name, updated.StockQuantity))
	s.publish(live.Products, live.ActionUpdated, updated.ID)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string, pin string) error {
	if err := s.requirePIN(ctx, pin); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	s.publish(live.Products, live.ActionDeleted, id)
	return nil
}

// Goods receipts.

func (s *Service) ListReceipts(ctx context.Context) ([]domain.GoodsReceipt, error) {
	return s.repo.ListReceipts(ctx)
}

// RecordReceipt persists the receipt document first and applies the stock
// side effect second. When the stock update fails after the receipt is
// stored, the two diverge; the error is surfaced and nothing is compensated.
func (s *Service) RecordReceipt(ctx context.Context, req domain.ReceiptCreateRequest) (domain.GoodsReceipt, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.Date == "" || req.ProductID == "" {
		return domain.GoodsReceipt{}, fmt.Errorf("%w: date and product are required", store.ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return domain.GoodsReceipt{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	if req.Quantity <= 0 {
		return domain.GoodsReceipt{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}
	if req.UnitCostCents <= 0 {
		return domain.GoodsReceipt{}, fmt.Errorf("%w: unit cost must be positive", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}

	receipt := domain.GoodsReceipt{
		ID:             xid.New("gr"),
		Date:           req.Date,
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       req.Quantity,
		UnitCostCents:  req.UnitCostCents,
		TotalCostCents: req.UnitCostCents * int64(req.Quantity),
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      time.Now().UTC(),
	}
	created, err := s.repo.CreateReceipt(ctx, receipt)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}

	s.logAudit(ctx, "receipt_create", "receipt", created.ID, fmt.Sprintf("product=%s,qty=%d", created.ProductID, created.Quantity))
	s.publish(live.Receipts, live.ActionCreated, created.ID)

	if _, err := s.repo.ReceiveStock(ctx, created.ProductID, created.Quantity, created.UnitCostCents); err != nil {
		log.Printf("[service] WARN: receipt %s stored but stock update failed for product %s: %v", created.ID, created.ProductID, err)
		return *created, fmt.Errorf("receipt recorded but stock update failed: %w", err)
	}
	s.publish(live.Products, live.ActionUpdated, created.ProductID)

	return *created, nil
}

// DeleteReceipt does not reverse the stock that was added when the receipt
// was recorded.
func (s *Service) DeleteReceipt(ctx context.Context, id string, pin string) error {
	if err := s.requirePIN(ctx, pin); err != nil {
		return err
	}
	if err := s.repo.DeleteReceipt(ctx, id); err != nil {
		return err
	}

	log.Printf("[service] WARN: receipt %s deleted; received stock was not reversed", id)
	s.logAudit(ctx, "receipt_delete", "receipt", id, "stock not reversed")
	s.publish(live.Receipts, live.ActionDeleted, id)
	return nil
}

// Sales.

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// SalesForPeriod filters the sale history by the dashboard period selector.
func (s *Service) SalesForPeriod(ctx context.Context, period domain.Period) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if dashboard.MatchesPeriod(sale.CreatedAt, period) {
			filtered = append(filtered, sale)
		}
	}
	return filtered, nil
}

// Checkout validates the requested lines against current stock, persists
// the sale, then deducts stock for each line concurrently. The sale write
// and the deductions share no transaction: if a deduction fails the sale
// stays recorded with stock not fully deducted, and the error says so.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	if len(req.Lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: bill has no items", store.ErrInvalidInput)
	}
	if req.DiscountCents < 0 {
		return domain.Sale{}, fmt.Errorf("%w: discount must not be negative", store.ErrInvalidInput)
	}

	builder := bill.New()
	for _, line := range req.Lines {
		product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(line.ProductID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("%w: unknown product %s", store.ErrInvalidInput, line.ProductID)
			}
			return domain.Sale{}, err
		}
		if err := builder.Add(*product, line.Qty); err != nil {
			return domain.Sale{}, err
		}
	}
	builder.SetDiscount(req.DiscountCents)

	now := time.Now().UTC()
	sale, err := builder.Sale(xid.New("sale"), xid.Bill(now), now)
	if err != nil {
		return domain.Sale{}, err
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("bill=%s,total=%d", created.BillID, created.TotalRevenueCents))
	s.publish(live.Sales, live.ActionCreated, created.ID)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range created.Items {
		item := item
		group.Go(func() error {
			if _, err := s.repo.DeductStock(groupCtx, item.ProductID, item.Qty); err != nil {
				return fmt.Errorf("deduct %s: %w", item.ProductID, err)
			}
			s.publish(live.Products, live.ActionUpdated, item.ProductID)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Printf("[service] WARN: sale %s recorded but stock deduction incomplete: %v", created.ID, err)
		return *created, fmt.Errorf("sale recorded but stock deduction incomplete: %w", err)
	}

	return *created, nil
}

// DeleteSale does not restore the stock that the sale deducted.
func (s *Service) DeleteSale(ctx context.Context, id string, pin string) error {
	if err := s.requirePIN(ctx, pin); err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	log.Printf("[service] WARN: sale %s deleted; sold stock was not restored", id)
	s.logAudit(ctx, "sale_delete", "sale", id, "stock not restored")
	s.publish(live.Sales, live.ActionDeleted, id)
	return nil
}

// Admin PIN.

// SetPIN stores the confirmation PIN as entered. The gate compares plain
// text by exact match; there is no hashing and no lockout.
func (s *Service) SetPIN(ctx context.Context, req domain.PINSetRequest) error {
	pin := strings.TrimSpace(req.PIN)
	if len(pin) != domain.PINLength || !allDigits(pin) {
		return fmt.Errorf("%w: PIN must be exactly %d digits", store.ErrInvalidInput, domain.PINLength)
	}

	err := s.repo.SetAdminConfig(ctx, domain.AdminConfig{
		PIN:       pin,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "pin_set", "config", "admin_pin", "")
	s.publish(live.Config, live.ActionUpdated, "admin_pin")
	return nil
}

// requirePIN is the shared gate for every destructive operation. A missing
// config refuses outright; a mismatch re-prompts without limit.
func (s *Service) requirePIN(ctx context.Context, pin string) error {
	config, err := s.repo.GetAdminConfig(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: configure a PIN first", store.ErrPINNotSet)
		}
		return err
	}
	if pin != config.PIN {
		return store.ErrPINMismatch
	}
	return nil
}

// ResetAll wipes categories, products, sales, receipts and the PIN itself.
func (s *Service) ResetAll(ctx context.Context, pin string) error {
	if err := s.requirePIN(ctx, pin); err != nil {
		return err
	}
	if err := s.repo.ResetAll(ctx); err != nil {
		return err
	}

	s.logAudit(ctx, "data_reset", "config", "", "all collections cleared")
	for _, collection := range []live.Collection{live.Categories, live.Products, live.Sales, live.Receipts, live.Config} {
		s.publish(collection, live.ActionReset, "")
	}
	return nil
}

// Dashboard.

func (s *Service) Dashboard(ctx context.Context, period domain.Period) (domain.DashboardSummary, error) {
	key := periodKey(period)
	if cached, ok, err := s.summaries.Get(ctx, key); err == nil && ok {
		return *cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := s.aggregator.Summarize(products, sales, period, time.Now().UTC())
	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: failed to cache dashboard summary: %v", err)
	}
	return summary, nil
}

func (s *Service) ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, limit)
}

// publish emits a change event and drops cached summaries; every mutation
// can shift the dashboard figures.
func (s *Service) publish(collection live.Collection, action string, entityID string) {
	s.hub.Publish(live.Event{Collection: collection, Action: action, EntityID: entityID})
	if err := s.summaries.Invalidate(context.Background()); err != nil {
		log.Printf("[service] WARN: failed to invalidate dashboard cache: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entity string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditEntry(ctx, domain.AuditEntry{
		ID:        xid.New("audit"),
		Actor:     actor.Username,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit entry action=%s entity=%s/%s: %v", action, entity, entityID, err)
	}
}

func periodKey(period domain.Period) string {
	switch {
	case period.Day != "":
		return "day:" + period.Day
	case period.Month != "":
		return "month:" + period.Month
	case period.Year != "":
		return "year:" + period.Year
	default:
		return "all"
	}
}

func allDigits(val string) bool {
	for _, r := range val {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(val) > 0
}
