package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	var st domain.Store
	var phone, address, cashier sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, phone, address, cashier_name, owner_id, created_at, updated_at
		FROM stores
		WHERE id = $1
	`, storeID).Scan(&st.ID, &st.Name, &st.Category, &phone, &address, &cashier, &st.OwnerID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	st.Phone = phone.String
	st.Address = address.String
	st.CashierName = cashier.String
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *Store) UpdateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	if strings.TrimSpace(st.Name) == "" || !st.Category.Valid() {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE stores
		SET name = $2, category = $3, phone = $4, address = $5, cashier_name = $6, updated_at = now()
		WHERE id = $1
	`, st.ID, st.Name, string(st.Category), nullIfEmpty(st.Phone), nullIfEmpty(st.Address), nullIfEmpty(st.CashierName))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetStore(ctx, st.ID)
}

const productColumns = `id, store_id, name, barcode, category, cost_price, sell_price, stock, is_photocopy, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &barcode, &p.Category, &p.CostPrice, &p.SellPrice, &p.Stock, &p.IsPhotocopy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.Barcode = barcode.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1
		ORDER BY category, name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	ids = store.UniqueIDs(ids)
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1 AND id = ANY($2)
	`, storeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.StoreID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice < 0 || product.SellPrice < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, store_id, name, barcode, category, cost_price, sell_price, stock, is_photocopy, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		RETURNING `+productColumns,
		product.ID, product.StoreID, product.Name, nullIfEmpty(product.Barcode), product.Category,
		product.CostPrice, product.SellPrice, product.Stock, product.IsPhotocopy)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) Restock(ctx context.Context, movement domain.StockMovement) (*domain.Product, error) {
	if movement.QuantityChange < 1 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var before int
	err = pgTx.QueryRowContext(ctx, `
		SELECT stock FROM products
		WHERE id = $1 AND store_id = $2
		FOR UPDATE
	`, movement.ProductID, movement.StoreID).Scan(&before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	movement.Kind = domain.MovementRestock
	movement.QuantityBefore = before
	movement.QuantityAfter = before + movement.QuantityChange
	if movement.ID == "" {
		movement.ID = xid.New("mv")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	row := pgTx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = $3, updated_at = now()
		WHERE id = $1 AND store_id = $2
		RETURNING `+productColumns,
		movement.ProductID, movement.StoreID, movement.QuantityAfter)
	product, err := scanProduct(row)
	if err != nil {
		return nil, err
	}

	if err := insertMovement(ctx, pgTx, movement); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListStockMovements(ctx context.Context, storeID string, productID string, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, product_id, receipt_id, kind, quantity_change, quantity_before, quantity_after, created_by, created_at
		FROM stock_movements
		WHERE store_id = $1 AND ($2::text = '' OR product_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, storeID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var mv domain.StockMovement
		var receiptID sql.NullString
		if err := rows.Scan(&mv.ID, &mv.StoreID, &mv.ProductID, &receiptID, &mv.Kind, &mv.QuantityChange, &mv.QuantityBefore, &mv.QuantityAfter, &mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.ReceiptID = receiptID.String
		mv.CreatedAt = mv.CreatedAt.UTC()
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// CommitCheckout writes the receipt, its items, the stock decrements and the
// ledger entries in one transaction. Each decrement is a compare-and-set on
// the stock observed at validation time; a lost race rolls everything back
// and reports store.ErrStockConflict.
func (s *Store) CommitCheckout(ctx context.Context, commit store.CheckoutCommit) (*domain.Receipt, error) {
	rcpt := commit.Receipt
	if rcpt.ID == "" || rcpt.StoreID == "" || len(rcpt.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO receipts (
			id, store_id, user_id, manual, subtotal, discount, total, profit,
			payment_method, idempotency_key, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rcpt.ID, rcpt.StoreID, rcpt.UserID, rcpt.IsManual(), rcpt.Subtotal, rcpt.Discount, rcpt.Total,
		rcpt.Profit, nullIfEmpty(rcpt.PaymentMethod), nullIfEmpty(rcpt.IdempotencyKey), rcpt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateReceipt
		}
		return nil, err
	}

	for i, item := range rcpt.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO receipt_items (
				id, receipt_id, position, product_id, product_name, quantity,
				unit_price, unit_cost, line_discount, final_price, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, item.ID, rcpt.ID, i, nullIfEmpty(item.ProductID), item.ProductName, item.Quantity,
			item.UnitPrice, item.UnitCost, item.LineDiscount, item.FinalPrice, rcpt.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	for _, d := range commit.Decrements {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND store_id = $3 AND stock = $4 AND stock >= $1
		`, d.Quantity, d.ProductID, rcpt.StoreID, d.ExpectedStock)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrStockConflict
		}
	}

	for _, mv := range commit.Movements {
		if mv.CreatedAt.IsZero() {
			mv.CreatedAt = rcpt.CreatedAt
		}
		if err := insertMovement(ctx, pgTx, mv); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

func (s *Store) FindReceiptByIdempotency(ctx context.Context, storeID string, key string) (*domain.Receipt, error) {
	return s.findReceipt(ctx, storeID, "idempotency_key", key)
}

func (s *Store) FindReceipt(ctx context.Context, storeID string, id string) (*domain.Receipt, error) {
	return s.findReceipt(ctx, storeID, "id", id)
}

const receiptColumns = `id, store_id, user_id, manual, subtotal, discount, total, profit, payment_method, idempotency_key, created_at`

func scanReceipt(row rowScanner) (domain.Receipt, error) {
	var r domain.Receipt
	var storeID, paymentMethod, idemKey sql.NullString
	var manual bool
	if err := row.Scan(&r.ID, &storeID, &r.UserID, &manual, &r.Subtotal, &r.Discount, &r.Total, &r.Profit, &paymentMethod, &idemKey, &r.CreatedAt); err != nil {
		return domain.Receipt{}, err
	}
	r.StoreID = storeID.String
	r.PaymentMethod = paymentMethod.String
	r.IdempotencyKey = idemKey.String
	r.Kind = domain.ReceiptKindInventory
	if manual {
		r.Kind = domain.ReceiptKindManual
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (s *Store) findReceipt(ctx context.Context, storeID string, column string, value string) (*domain.Receipt, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM receipts
		WHERE store_id = $1 AND %s = $2
	`, receiptColumns, column)
	rcpt, err := scanReceipt(s.db.QueryRowContext(ctx, query, storeID, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadItems(ctx, []string{rcpt.ID})
	if err != nil {
		return nil, err
	}
	rcpt.Items = items[rcpt.ID]
	if rcpt.Items == nil {
		rcpt.Items = []domain.ReceiptItem{}
	}
	return &rcpt, nil
}

func (s *Store) ListReceipts(ctx context.Context, storeID string, filter store.ReceiptFilter) ([]domain.Receipt, error) {
	conditions := []string{"store_id = $1"}
	args := []any{storeID}
	if filter.ExcludeManual {
		conditions = append(conditions, "manual = false", "id NOT LIKE 'MNL-%'")
	}
	if filter.OnlyManual {
		conditions = append(conditions, "(manual = true OR id LIKE 'MNL-%')")
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM receipts
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, receiptColumns, strings.Join(conditions, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	receipts := make([]domain.Receipt, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		receipts = append(receipts, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range receipts {
		receipts[i].Items = items[receipts[i].ID]
		if receipts[i].Items == nil {
			receipts[i].Items = []domain.ReceiptItem{}
		}
	}
	return receipts, nil
}

func (s *Store) loadItems(ctx context.Context, receiptIDs []string) (map[string][]domain.ReceiptItem, error) {
	result := make(map[string][]domain.ReceiptItem, len(receiptIDs))
	if len(receiptIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, product_id, product_name, quantity, unit_price, unit_cost, line_discount, final_price, created_at
		FROM receipt_items
		WHERE receipt_id = ANY($1)
		ORDER BY receipt_id, position ASC
	`, receiptIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.ReceiptItem
		var productID sql.NullString
		if err := rows.Scan(&item.ID, &item.ReceiptID, &productID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.UnitCost, &item.LineDiscount, &item.FinalPrice, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.ProductID = productID.String
		item.CreatedAt = item.CreatedAt.UTC()
		result[item.ReceiptID] = append(result[item.ReceiptID], item)
	}
	return result, rows.Err()
}

func (s *Store) GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{
		StoreID:   storeID,
		ByPayment: make([]domain.PaymentSummary, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(subtotal),0)::bigint,
			COALESCE(SUM(discount),0)::bigint,
			COALESCE(SUM(total),0)::bigint,
			COALESCE(SUM(profit),0)::bigint
		FROM receipts
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND manual = false
			AND id NOT LIKE 'MNL-%'
	`, storeID, from, to).Scan(
		&summary.Transactions,
		&summary.GrossSales,
		&summary.Discount,
		&summary.NetSales,
		&summary.Profit,
	)
	if err != nil {
		return summary, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(payment_method, 'cash'), COUNT(*)::bigint, COALESCE(SUM(total),0)::bigint
		FROM receipts
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND manual = false
			AND id NOT LIKE 'MNL-%'
		GROUP BY 1
		ORDER BY 1
	`, storeID, from, to)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.PaymentSummary
		if err := rows.Scan(&row.PaymentMethod, &row.Transactions, &row.Total); err != nil {
			return summary, err
		}
		summary.ByPayment = append(summary.ByPayment, row)
	}
	return summary, rows.Err()
}

const shoppingColumns = `id, store_id, user_id, name, quantity, unit, current_stock, notes, is_completed, created_at, updated_at`

func scanShoppingItem(row rowScanner) (domain.ShoppingItem, error) {
	var item domain.ShoppingItem
	var notes sql.NullString
	if err := row.Scan(&item.ID, &item.StoreID, &item.UserID, &item.Name, &item.Quantity, &item.Unit, &item.CurrentStock, &notes, &item.IsCompleted, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return domain.ShoppingItem{}, err
	}
	item.Notes = notes.String
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func (s *Store) CreateShoppingItem(ctx context.Context, item domain.ShoppingItem) (*domain.ShoppingItem, error) {
	if item.StoreID == "" || strings.TrimSpace(item.Name) == "" || item.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("shop")
	}

	created, err := scanShoppingItem(s.db.QueryRowContext(ctx, `
		INSERT INTO shopping_items (id, store_id, user_id, name, quantity, unit, current_stock, notes, is_completed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,now(),now())
		RETURNING `+shoppingColumns,
		item.ID, item.StoreID, item.UserID, item.Name, item.Quantity, item.Unit, item.CurrentStock, nullIfEmpty(item.Notes)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) ListShoppingItems(ctx context.Context, storeID string) ([]domain.ShoppingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shoppingColumns+`
		FROM shopping_items
		WHERE store_id = $1
		ORDER BY is_completed ASC, created_at DESC
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ShoppingItem, 0, 16)
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) SetShoppingItemCompleted(ctx context.Context, storeID string, id string, completed bool) (*domain.ShoppingItem, error) {
	item, err := scanShoppingItem(s.db.QueryRowContext(ctx, `
		UPDATE shopping_items
		SET is_completed = $3, updated_at = now()
		WHERE id = $1 AND store_id = $2
		RETURNING `+shoppingColumns,
		id, storeID, completed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, user_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.StoreID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, user_id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.UserID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" || user.StoreID == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, store_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Role, user.StoreID, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, store_id, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.StoreID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, mv domain.StockMovement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (
			id, store_id, product_id, receipt_id, kind, quantity_change,
			quantity_before, quantity_after, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, mv.ID, mv.StoreID, mv.ProductID, nullIfEmpty(mv.ReceiptID), string(mv.Kind), mv.QuantityChange,
		mv.QuantityBefore, mv.QuantityAfter, mv.CreatedBy, mv.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
