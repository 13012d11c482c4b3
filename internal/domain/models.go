package domain

import (
	"strings"
	"time"
)

type StoreCategory string

const (
	CategorySembako    StoreCategory = "sembako"
	CategoryBangunan   StoreCategory = "bangunan"
	CategoryAgenSosis  StoreCategory = "agen_sosis"
	CategoryATK        StoreCategory = "atk"
	CategoryElektronik StoreCategory = "elektronik"
	CategoryPakaian    StoreCategory = "pakaian"
	CategoryFarmasi    StoreCategory = "farmasi"
	CategoryLainnya    StoreCategory = "lainnya"
)

var storeCategoryLabels = map[StoreCategory]string{
	CategorySembako:    "Toko Sembako",
	CategoryBangunan:   "Toko Bangunan",
	CategoryAgenSosis:  "Agen Sosis",
	CategoryATK:        "Toko ATK",
	CategoryElektronik: "Toko Elektronik",
	CategoryPakaian:    "Toko Pakaian",
	CategoryFarmasi:    "Apotek / Farmasi",
	CategoryLainnya:    "Lainnya",
}

// StoreCategories returns the category vocabulary in display order.
func StoreCategories() []StoreCategory {
	return []StoreCategory{
		CategorySembako,
		CategoryBangunan,
		CategoryAgenSosis,
		CategoryATK,
		CategoryElektronik,
		CategoryPakaian,
		CategoryFarmasi,
		CategoryLainnya,
	}
}

func (c StoreCategory) Valid() bool {
	_, ok := storeCategoryLabels[c]
	return ok
}

func (c StoreCategory) Label() string {
	if label, ok := storeCategoryLabels[c]; ok {
		return label
	}
	return storeCategoryLabels[CategoryLainnya]
}

type Store struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Category    StoreCategory `json:"category"`
	Phone       string        `json:"phone,omitempty"`
	Address     string        `json:"address,omitempty"`
	CashierName string        `json:"cashier_name,omitempty"`
	OwnerID     string        `json:"owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type StoreUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Category    *string `json:"category,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	CashierName *string `json:"cashier_name,omitempty"`
}

type Product struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	Barcode     string    `json:"barcode,omitempty"`
	Category    string    `json:"category"`
	CostPrice   int64     `json:"cost_price"`
	SellPrice   int64     `json:"sell_price"`
	Stock       int       `json:"stock"`
	IsPhotocopy bool      `json:"is_photocopy"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Barcode      string `json:"barcode"`
	Category     string `json:"category"`
	CostPrice    int64  `json:"cost_price"`
	SellPrice    int64  `json:"sell_price"`
	InitialStock int    `json:"initial_stock"`
	IsPhotocopy  bool   `json:"is_photocopy"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type ReceiptKind string

const (
	ReceiptKindInventory ReceiptKind = "inventory"
	ReceiptKindManual    ReceiptKind = "manual"
)

// ManualReceiptPrefix marks identifiers of receipts recorded without inventory effects.
const ManualReceiptPrefix = "MNL-"

type Receipt struct {
	ID             string        `json:"id"`
	StoreID        string        `json:"store_id"`
	UserID         string        `json:"user_id"`
	Kind           ReceiptKind   `json:"kind"`
	Subtotal       int64         `json:"subtotal"`
	Discount       int64         `json:"discount"`
	Total          int64         `json:"total"`
	Profit         int64         `json:"profit"`
	PaymentMethod  string        `json:"payment_method"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Items          []ReceiptItem `json:"items"`
}

// IsManual reports whether the receipt was recorded outside inventory,
// either by its kind or by the legacy identifier prefix.
func (r Receipt) IsManual() bool {
	return r.Kind == ReceiptKindManual || strings.HasPrefix(r.ID, ManualReceiptPrefix)
}

type ReceiptItem struct {
	ID           string    `json:"id"`
	ReceiptID    string    `json:"receipt_id"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	UnitPrice    int64     `json:"unit_price"`
	UnitCost     int64     `json:"unit_cost"`
	LineDiscount int64     `json:"line_discount"`
	FinalPrice   int64     `json:"final_price"`
	CreatedAt    time.Time `json:"created_at"`
}

type MovementKind string

const (
	MovementSale    MovementKind = "sale"
	MovementRestock MovementKind = "restock"
)

type StockMovement struct {
	ID             string       `json:"id"`
	StoreID        string       `json:"store_id"`
	ProductID      string       `json:"product_id"`
	ReceiptID      string       `json:"receipt_id,omitempty"`
	Kind           MovementKind `json:"kind"`
	QuantityChange int          `json:"quantity_change"`
	QuantityBefore int          `json:"quantity_before"`
	QuantityAfter  int          `json:"quantity_after"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
}

type ShoppingItem struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	Unit         string    `json:"unit"`
	CurrentStock int       `json:"current_stock"`
	Notes        string    `json:"notes,omitempty"`
	IsCompleted  bool      `json:"is_completed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ShoppingItemCreateRequest struct {
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Unit         string `json:"unit"`
	CurrentStock int    `json:"current_stock"`
	Notes        string `json:"notes"`
}

type RestockSuggestion struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	CurrentStock int     `json:"current_stock"`
	Threshold    int     `json:"threshold"`
	OnList       bool    `json:"on_shopping_list"`
	Urgency      float64 `json:"urgency"`
	ReasonCode   string  `json:"reason_code"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StoreID     string `json:"store_id"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Session identifies the operator acting on a store. It is resolved by the
// auth layer and passed explicitly to every store-scoped operation.
type Session struct {
	StoreID string
	UserID  string
	Role    string
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.StoreID) == "" {
		return NewValidationError("store_id", "required")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return NewValidationError("user_id", "required")
	}
	return nil
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type CheckoutRequest struct {
	IdempotencyKey string     `json:"idempotency_key"`
	PaymentMethod  string     `json:"payment_method"`
	Manual         bool       `json:"manual"`
	Items          []CartLine `json:"items"`
	Discount       Discount   `json:"discount"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

type CheckoutResponse struct {
	Receipt   Receipt `json:"receipt"`
	Duplicate bool    `json:"duplicate"`
	Attempts  int     `json:"attempts"`
}

type PaymentSummary struct {
	PaymentMethod string `json:"payment_method"`
	Transactions  int64  `json:"transactions"`
	Total         int64  `json:"total"`
}

type SalesSummary struct {
	StoreID      string           `json:"store_id"`
	Date         string           `json:"date"`
	Transactions int64            `json:"transactions"`
	GrossSales   int64            `json:"gross_sales"`
	Discount     int64            `json:"discount"`
	NetSales     int64            `json:"net_sales"`
	Profit       int64            `json:"profit"`
	ByPayment    []PaymentSummary `json:"by_payment"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	StoreID   string
	Active    bool
	CreatedAt time.Time
}
