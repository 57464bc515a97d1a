package domain

import "time"

// Money is carried as int64 minor units (satang). JSON field names follow the
// stored document shapes so exported data stays compatible with the frontend.

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	CostPriceCents    int64     `json:"costPrice"`
	SellingPriceCents int64     `json:"sellingPrice"`
	CategoryID        string    `json:"categoryId"`
	StockQuantity     int       `json:"stockQuantity"`
	MinStockThreshold int       `json:"minStockThreshold"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// GoodsReceipt is immutable after creation except via delete. Recording one
// increases the product's stock and overwrites its cost price with UnitCost.
type GoodsReceipt struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"` // YYYY-MM-DD
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int       `json:"quantity"`
	UnitCostCents  int64     `json:"unitCost"`
	TotalCostCents int64     `json:"totalCost"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SaleItem is a point-in-time snapshot; later price edits on the product do
// not affect recorded bills.
type SaleItem struct {
	ProductID         string `json:"id"`
	Name              string `json:"name"`
	UnitPriceCents    int64  `json:"unitPrice"`
	CostPriceCents    int64  `json:"costPrice"`
	Qty               int    `json:"qty"`
	TotalRevenueCents int64  `json:"totalRevenue"`
	TotalCostCents    int64  `json:"totalCost"`
}

type Sale struct {
	ID                string     `json:"id"`
	BillID            string     `json:"billId"`
	Items             []SaleItem `json:"items"`
	DiscountCents     int64      `json:"discount"`
	SubtotalCents     int64      `json:"subtotal"`
	TotalRevenueCents int64      `json:"totalRevenue"`
	TotalCOGSCents    int64      `json:"totalCostOfGoodsSold"`
	ProfitCents       int64      `json:"profit"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// AdminConfig is the singleton gate document. The PIN is stored and compared
// as plain text, exact match, fixed length.
type AdminConfig struct {
	PIN       string    `json:"pin"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const PINLength = 4

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// Actor identifies the authenticated user behind a request, carried on the
// context from the HTTP layer down to the audit trail.
type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Requests and responses.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	Role        string `json:"role"`
	Username    string `json:"username"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type CategoryUpdateRequest struct {
	Name string `json:"name"`
}

type ProductCreateRequest struct {
	Name              string `json:"name"`
	CostPriceCents    int64  `json:"costPrice"`
	SellingPriceCents int64  `json:"sellingPrice"`
	CategoryID        string `json:"categoryId"`
	StockQuantity     int    `json:"stockQuantity"`
	MinStockThreshold int    `json:"minStockThreshold"`
}

// ProductUpdateRequest uses pointers so absent fields are left untouched.
type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	CostPriceCents    *int64  `json:"costPrice,omitempty"`
	SellingPriceCents *int64  `json:"sellingPrice,omitempty"`
	CategoryID        *string `json:"categoryId,omitempty"`
	StockQuantity     *int    `json:"stockQuantity,omitempty"`
	MinStockThreshold *int    `json:"minStockThreshold,omitempty"`
}

type ReceiptCreateRequest struct {
	Date          string `json:"date"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unitCost"`
	Notes         string `json:"notes"`
}

type CheckoutLine struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type CheckoutRequest struct {
	Lines         []CheckoutLine `json:"lines"`
	DiscountCents int64          `json:"discount"`
}

type PINSetRequest struct {
	PIN string `json:"pin"`
}

// DeleteRequest carries the confirmation PIN for destructive operations.
type DeleteRequest struct {
	PIN string `json:"pin"`
}

type ResetRequest struct {
	PIN string `json:"pin"`
}

// Period selects which sales feed the revenue/profit figures. Zero value
// means all-time. Day uses YYYY-MM-DD, Month YYYY-MM, Year YYYY.
type Period struct {
	Day   string `json:"day,omitempty"`
	Month string `json:"month,omitempty"`
	Year  string `json:"year,omitempty"`
}

type StaleProduct struct {
	ProductID       string     `json:"productId"`
	Name            string     `json:"name"`
	StockQuantity   int        `json:"stockQuantity"`
	StockValueCents int64      `json:"stockValue"`
	LastSoldAt      *time.Time `json:"lastSoldAt,omitempty"`
}

type BestSeller struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	QtySold   int    `json:"qtySold"`
}

type CriticalProduct struct {
	ProductID         string `json:"productId"`
	Name              string `json:"name"`
	StockQuantity     int    `json:"stockQuantity"`
	MinStockThreshold int    `json:"minStockThreshold"`
	OutOfStock        bool   `json:"outOfStock"`
}

type DashboardSummary struct {
	RevenueCents         int64             `json:"revenue"`
	ProfitCents          int64             `json:"profit"`
	ProfitMargin         float64           `json:"profitMargin"`
	BillCount            int               `json:"billCount"`
	LowStockCount        int               `json:"lowStockCount"`
	OutOfStockCount      int               `json:"outOfStockCount"`
	InventoryValueCents  int64             `json:"inventoryValue"`
	StaleStock           []StaleProduct    `json:"staleStock"`
	StaleStockValueCents int64             `json:"staleStockValue"`
	BestSellers          []BestSeller      `json:"bestSellers"`
	CriticalStock        []CriticalProduct `json:"criticalStock"`
}
