package store

import (
	"context"
	"errors"

	"agripos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPINNotSet         = errors.New("no admin PIN configured")
	ErrPINMismatch       = errors.New("PIN does not match")
)

type Repository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// DeductStock writes max(0, stock-qty) in one atomic read-modify-write.
	// ReceiveStock writes stock+qty and overwrites the product's cost price
	// with unitCost. Both return ErrNotFound when the product is missing and
	// write nothing.
	DeductStock(ctx context.Context, productID string, qty int) (*domain.Product, error)
	ReceiveStock(ctx context.Context, productID string, qty int, unitCostCents int64) (*domain.Product, error)

	ListReceipts(ctx context.Context) ([]domain.GoodsReceipt, error)
	CreateReceipt(ctx context.Context, receipt domain.GoodsReceipt) (*domain.GoodsReceipt, error)
	DeleteReceipt(ctx context.Context, id string) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	GetAdminConfig(ctx context.Context) (*domain.AdminConfig, error)
	SetAdminConfig(ctx context.Context, config domain.AdminConfig) error

	// ResetAll removes every category, product, sale and receipt together
	// with the admin config document. User accounts and audit entries stay.
	ResetAll(ctx context.Context) error

	CreateAuditEntry(ctx context.Context, entry domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
