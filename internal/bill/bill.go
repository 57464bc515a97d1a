package bill

import (
	"fmt"
	"time"

	"agripos/backend/internal/domain"
	"agripos/backend/internal/store"
)

// Line is one product entry in an open bill. Prices are copied from the
// product at add time so the finished bill is immune to later price edits.
// Stock carries the product's stock level as last seen, used for the
// advisory availability check.
type Line struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	CostPriceCents int64
	Qty            int
	Stock          int
}

// Builder accumulates an in-memory bill before checkout. The stock checks
// here are advisory: the floor-at-zero policy in the store is what keeps
// stock non-negative when two bills race on the same product.
type Builder struct {
	lines         []Line
	discountCents int64
}

func New() *Builder {
	return &Builder{}
}

// Add puts qty units of the product on the bill. If the product already has
// a line the quantities merge. Rejected without mutating the bill when qty
// is not positive, the product is unidentified, or the cumulative bill
// quantity would exceed the product's current stock.
func (b *Builder) Add(product domain.Product, qty int) error {
	if product.ID == "" {
		return fmt.Errorf("%w: no product selected", store.ErrInvalidInput)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}

	inCart := 0
	at := -1
	for i, line := range b.lines {
		if line.ProductID == product.ID {
			inCart = line.Qty
			at = i
			break
		}
	}
	if product.StockQuantity < inCart+qty {
		return fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, product.Name, product.StockQuantity-inCart)
	}

	if at >= 0 {
		b.lines[at].Qty += qty
		b.lines[at].Stock = product.StockQuantity
		return nil
	}
	b.lines = append(b.lines, Line{
		ProductID:      product.ID,
		Name:           product.Name,
		UnitPriceCents: product.SellingPriceCents,
		CostPriceCents: product.CostPriceCents,
		Qty:            qty,
		Stock:          product.StockQuantity,
	})
	return nil
}

// SetQuantity replaces a line's quantity. Zero removes the line, negative is
// rejected, and quantities above the product's last seen stock are rejected
// without mutation.
func (b *Builder) SetQuantity(index int, qty int) error {
	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: no such line", store.ErrInvalidInput)
	}
	if qty < 0 {
		return fmt.Errorf("%w: quantity must not be negative", store.ErrInvalidInput)
	}
	if qty == 0 {
		b.Remove(index)
		return nil
	}
	line := b.lines[index]
	if qty > line.Stock {
		return fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, line.Name, line.Stock)
	}
	b.lines[index].Qty = qty
	return nil
}

// Remove drops a line unconditionally. Out-of-range indexes are ignored.
func (b *Builder) Remove(index int) {
	if index < 0 || index >= len(b.lines) {
		return
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
}

func (b *Builder) SetDiscount(cents int64) {
	b.discountCents = cents
}

func (b *Builder) DiscountCents() int64 { return b.discountCents }

func (b *Builder) Empty() bool { return len(b.lines) == 0 }

func (b *Builder) Lines() []Line {
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *Builder) SubtotalCents() int64 {
	var total int64
	for _, line := range b.lines {
		total += line.UnitPriceCents * int64(line.Qty)
	}
	return total
}

func (b *Builder) TotalCOGSCents() int64 {
	var total int64
	for _, line := range b.lines {
		total += line.CostPriceCents * int64(line.Qty)
	}
	return total
}

// GrandTotalCents is max(0, subtotal - discount). A discount larger than the
// subtotal clamps to zero rather than producing a negative bill.
func (b *Builder) GrandTotalCents() int64 {
	total := b.SubtotalCents() - b.discountCents
	if total < 0 {
		return 0
	}
	return total
}

// Sale snapshots the bill into a persistable record. The builder keeps its
// state; the caller clears it only after the sale is stored.
func (b *Builder) Sale(id string, billID string, now time.Time) (domain.Sale, error) {
	if b.Empty() {
		return domain.Sale{}, fmt.Errorf("%w: bill has no items", store.ErrInvalidInput)
	}

	items := make([]domain.SaleItem, 0, len(b.lines))
	for _, line := range b.lines {
		items = append(items, domain.SaleItem{
			ProductID:         line.ProductID,
			Name:              line.Name,
			UnitPriceCents:    line.UnitPriceCents,
			CostPriceCents:    line.CostPriceCents,
			Qty:               line.Qty,
			TotalRevenueCents: line.UnitPriceCents * int64(line.Qty),
			TotalCostCents:    line.CostPriceCents * int64(line.Qty),
		})
	}

	subtotal := b.SubtotalCents()
	revenue := b.GrandTotalCents()
	cogs := b.TotalCOGSCents()

	return domain.Sale{
		ID:                id,
		BillID:            billID,
		Items:             items,
		DiscountCents:     b.discountCents,
		SubtotalCents:     subtotal,
		TotalRevenueCents: revenue,
		TotalCOGSCents:    cogs,
		ProfitCents:       revenue - cogs,
		CreatedAt:         now.UTC(),
	}, nil
}

// Clear resets the builder to an empty bill.
func (b *Builder) Clear() {
	b.lines = nil
	b.discountCents = 0
}
