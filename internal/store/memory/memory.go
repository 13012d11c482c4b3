package memory

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

const (
	SeedStoreID      = "toko-berkah"
	SeedOtherStoreID = "atk-jaya"
)

type Store struct {
	mu              sync.RWMutex
	stores          map[string]domain.Store
	products        map[string]domain.Product
	receiptsByID    map[string]*domain.Receipt
	receiptsByIdem  map[string]string
	movements       []domain.StockMovement
	shoppingByID    map[string]domain.ShoppingItem
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		stores:          make(map[string]domain.Store),
		products:        make(map[string]domain.Product),
		receiptsByID:    make(map[string]*domain.Receipt),
		receiptsByIdem:  make(map[string]string),
		movements:       make([]domain.StockMovement, 0, 128),
		shoppingByID:    make(map[string]domain.ShoppingItem),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Passwords come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD and fall
// back to dev defaults with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		storeID  string
	}{
		{"admin", adminPwd, domain.RoleAdmin, SeedStoreID},
		{"cashier", cashierPwd, domain.RoleCashier, SeedStoreID},
		{"admin-atk", adminPwd, domain.RoleAdmin, SeedOtherStoreID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			StoreID:   u.storeID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with two tenants, a small catalog each and
// demo accounts.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	s.stores[SeedStoreID] = domain.Store{
		ID: SeedStoreID, Name: "Toko Berkah", Category: domain.CategorySembako,
		Phone: "0812-3456-7890", Address: "Jl. Pasar Baru No. 12", CashierName: "Sari",
		OwnerID: "admin", CreatedAt: now, UpdatedAt: now,
	}
	s.stores[SeedOtherStoreID] = domain.Store{
		ID: SeedOtherStoreID, Name: "ATK Jaya", Category: domain.CategoryATK,
		OwnerID: "admin-atk", CreatedAt: now, UpdatedAt: now,
	}

	products := []domain.Product{
		{ID: "prd-beras-5kg", StoreID: SeedStoreID, Name: "Beras 5kg", Barcode: "8991001000011", Category: "pangan", CostPrice: 62000, SellPrice: 72000, Stock: 40},
		{ID: "prd-gula-1kg", StoreID: SeedStoreID, Name: "Gula Pasir 1kg", Barcode: "8991001000028", Category: "pangan", CostPrice: 14500, SellPrice: 17500, Stock: 60},
		{ID: "prd-minyak-2l", StoreID: SeedStoreID, Name: "Minyak Goreng 2L", Barcode: "8991001000035", Category: "pangan", CostPrice: 31000, SellPrice: 36000, Stock: 24},
		{ID: "prd-telur-1kg", StoreID: SeedStoreID, Name: "Telur Ayam 1kg", Category: "pangan", CostPrice: 26000, SellPrice: 29500, Stock: 15},
		{ID: "prd-mie-goreng", StoreID: SeedStoreID, Name: "Mie Goreng Instan", Barcode: "8991001000059", Category: "makanan", CostPrice: 2600, SellPrice: 3500, Stock: 120},
		{ID: "prd-kopi-sachet", StoreID: SeedStoreID, Name: "Kopi Sachet", Category: "minuman", CostPrice: 1800, SellPrice: 2500, Stock: 3},
		{ID: "prd-buku-tulis", StoreID: SeedOtherStoreID, Name: "Buku Tulis 38 Lembar", Category: "kertas", CostPrice: 3000, SellPrice: 4500, Stock: 200},
		{ID: "prd-pulpen", StoreID: SeedOtherStoreID, Name: "Pulpen Hitam", Category: "alat tulis", CostPrice: 1500, SellPrice: 2500, Stock: 150},
		{ID: "prd-fotokopi", StoreID: SeedOtherStoreID, Name: "Fotokopi A4", Category: "jasa", CostPrice: 150, SellPrice: 300, Stock: 5000, IsPhotocopy: true},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) GetStore(_ context.Context, storeID string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

// PutStore inserts or replaces a store. Used for provisioning and tests.
func (s *Store) PutStore(st domain.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	st.UpdatedAt = st.CreatedAt
	s.stores[st.ID] = st
}

func (s *Store) UpdateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stores[st.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(st.Name) == "" || !st.Category.Valid() {
		return nil, store.ErrInvalidInput
	}
	st.OwnerID = existing.OwnerID
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = time.Now().UTC()
	s.stores[st.ID] = st
	return &st, nil
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID == storeID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category == result[j].Category {
			return result[i].Name < result[j].Name
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		p, ok := s.products[id]
		if ok && p.StoreID == storeID {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.StoreID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice < 0 || product.SellPrice < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[product.StoreID]; !ok {
		return nil, store.ErrNotFound
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrAlreadyExists
	}
	if product.Barcode != "" {
		for _, p := range s.products {
			if p.StoreID == product.StoreID && p.Barcode == product.Barcode {
				return nil, store.ErrAlreadyExists
			}
		}
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) Restock(_ context.Context, movement domain.StockMovement) (*domain.Product, error) {
	if movement.QuantityChange < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[movement.ProductID]
	if !ok || product.StoreID != movement.StoreID {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	movement.Kind = domain.MovementRestock
	movement.QuantityBefore = product.Stock
	movement.QuantityAfter = product.Stock + movement.QuantityChange
	if movement.ID == "" {
		movement.ID = xid.New("mv")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = now
	}

	product.Stock = movement.QuantityAfter
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.movements = append(s.movements, movement)
	return &product, nil
}

func (s *Store) ListStockMovements(_ context.Context, storeID string, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, 32)
	for i := len(s.movements) - 1; i >= 0; i-- {
		mv := s.movements[i]
		if mv.StoreID != storeID {
			continue
		}
		if productID != "" && mv.ProductID != productID {
			continue
		}
		result = append(result, mv)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// CommitCheckout verifies every guarded decrement before mutating anything,
// so a conflict on any line leaves the store untouched.
func (s *Store) CommitCheckout(_ context.Context, commit store.CheckoutCommit) (*domain.Receipt, error) {
	rcpt := commit.Receipt
	if rcpt.ID == "" || rcpt.StoreID == "" || len(rcpt.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receiptsByID[rcpt.ID]; exists {
		return nil, store.ErrDuplicateReceipt
	}
	idemKey := idempotencyIndex(rcpt.StoreID, rcpt.IdempotencyKey)
	if rcpt.IdempotencyKey != "" {
		if _, exists := s.receiptsByIdem[idemKey]; exists {
			return nil, store.ErrDuplicateReceipt
		}
	}

	for _, d := range commit.Decrements {
		product, ok := s.products[d.ProductID]
		if !ok || product.StoreID != rcpt.StoreID {
			return nil, store.ErrStockConflict
		}
		if product.Stock != d.ExpectedStock || product.Stock < d.Quantity {
			return nil, store.ErrStockConflict
		}
	}

	now := time.Now().UTC()
	for _, d := range commit.Decrements {
		product := s.products[d.ProductID]
		product.Stock -= d.Quantity
		product.UpdatedAt = now
		s.products[d.ProductID] = product
	}
	for _, mv := range commit.Movements {
		if mv.CreatedAt.IsZero() {
			mv.CreatedAt = now
		}
		s.movements = append(s.movements, mv)
	}

	stored := cloneReceipt(rcpt)
	s.receiptsByID[stored.ID] = &stored
	if rcpt.IdempotencyKey != "" {
		s.receiptsByIdem[idemKey] = stored.ID
	}

	out := cloneReceipt(stored)
	return &out, nil
}

func (s *Store) FindReceiptByIdempotency(_ context.Context, storeID string, key string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.receiptsByIdem[idempotencyIndex(storeID, key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneReceipt(*s.receiptsByID[id])
	return &out, nil
}

func (s *Store) FindReceipt(_ context.Context, storeID string, id string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rcpt, ok := s.receiptsByID[id]
	if !ok || rcpt.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	out := cloneReceipt(*rcpt)
	return &out, nil
}

func (s *Store) ListReceipts(_ context.Context, storeID string, filter store.ReceiptFilter) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Receipt, 0, 32)
	for _, rcpt := range s.receiptsByID {
		if !matchesFilter(*rcpt, storeID, filter) {
			continue
		}
		result = append(result, cloneReceipt(*rcpt))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) GetSalesSummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{StoreID: storeID, ByPayment: make([]domain.PaymentSummary, 0, 4)}
	byPayment := make(map[string]*domain.PaymentSummary)
	for _, rcpt := range s.receiptsByID {
		if !matchesFilter(*rcpt, storeID, store.ReceiptFilter{ExcludeManual: true, From: from, To: to}) {
			continue
		}
		summary.Transactions++
		summary.GrossSales += rcpt.Subtotal
		summary.Discount += rcpt.Discount
		summary.NetSales += rcpt.Total
		summary.Profit += rcpt.Profit

		row, ok := byPayment[rcpt.PaymentMethod]
		if !ok {
			row = &domain.PaymentSummary{PaymentMethod: rcpt.PaymentMethod}
			byPayment[rcpt.PaymentMethod] = row
		}
		row.Transactions++
		row.Total += rcpt.Total
	}
	for _, row := range byPayment {
		summary.ByPayment = append(summary.ByPayment, *row)
	}
	sort.Slice(summary.ByPayment, func(i, j int) bool {
		return summary.ByPayment[i].PaymentMethod < summary.ByPayment[j].PaymentMethod
	})
	return summary, nil
}

func (s *Store) CreateShoppingItem(_ context.Context, item domain.ShoppingItem) (*domain.ShoppingItem, error) {
	if item.StoreID == "" || strings.TrimSpace(item.Name) == "" || item.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("shop")
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.shoppingByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) ListShoppingItems(_ context.Context, storeID string) ([]domain.ShoppingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShoppingItem, 0, 16)
	for _, item := range s.shoppingByID {
		if item.StoreID == storeID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsCompleted != result[j].IsCompleted {
			return !result[i].IsCompleted
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) SetShoppingItemCompleted(_ context.Context, storeID string, id string, completed bool) (*domain.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.shoppingByID[id]
	if !ok || item.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	item.IsCompleted = completed
	item.UpdatedAt = time.Now().UTC()
	s.shoppingByID[id] = item
	return &item, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 32)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].StoreID != storeID {
			continue
		}
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrAlreadyExists
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func matchesFilter(rcpt domain.Receipt, storeID string, filter store.ReceiptFilter) bool {
	if rcpt.StoreID != storeID {
		return false
	}
	if filter.ExcludeManual && rcpt.IsManual() {
		return false
	}
	if filter.OnlyManual && !rcpt.IsManual() {
		return false
	}
	if !filter.From.IsZero() && rcpt.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !rcpt.CreatedAt.Before(filter.To) {
		return false
	}
	return true
}

func idempotencyIndex(storeID string, key string) string {
	return storeID + "|" + key
}

func cloneReceipt(r domain.Receipt) domain.Receipt {
	r.Items = slices.Clone(r.Items)
	return r
}
