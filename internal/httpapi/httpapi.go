package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/logging"
	"kasirtoko/backend/internal/printout"
	"kasirtoko/backend/internal/report"
	"kasirtoko/backend/internal/service"
	"kasirtoko/backend/internal/store"
)

const (
	sessionKey   = "session"
	maxBodyBytes = 1 << 20
)

type Options struct {
	AllowedOrigins         []string
	LoginAttemptsPerMinute int
}

type API struct {
	service        *service.Service
	auth           *AuthManager
	allowedOrigins []string
	loginLimiter   *clientLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	attempts := opts.LoginAttemptsPerMinute
	if attempts < 1 {
		attempts = 5
	}
	return &API{
		service:        svc,
		auth:           auth,
		allowedOrigins: opts.AllowedOrigins,
		loginLimiter:   newClientLimiter(rate.Every(time.Minute/time.Duration(attempts)), attempts),
	}
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{limit: limit, burst: burst, visitors: make(map[string]*visitor)}
}

func (l *clientLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(l.visitors, k)
		}
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(), a.securityHeaders())
	r.Use(cors.New(a.corsConfig()))

	r.GET("/healthz", a.handleHealth)
	r.POST("/api/v1/auth/login", a.handleLogin)

	v1 := r.Group("/api/v1", a.requireAuth(domain.RoleCashier, domain.RoleAdmin))
	v1.GET("/store", a.handleGetStore)
	v1.GET("/store/categories", a.handleStoreCategories)
	v1.GET("/products", a.handleListProducts)
	v1.GET("/stock-movements", a.handleStockMovements)
	v1.POST("/checkout", a.handleCheckout)
	v1.GET("/receipts", a.handleListReceipts)
	v1.GET("/receipts/:id", a.handleGetReceipt)
	v1.GET("/receipts/:id/pdf", a.handleReceiptPDF)
	v1.GET("/shopping-items", a.handleListShoppingItems)
	v1.POST("/shopping-items", a.handleCreateShoppingItem)
	v1.PATCH("/shopping-items/:id", a.handleUpdateShoppingItem)
	v1.GET("/restock-suggestions", a.handleRestockSuggestions)

	admin := r.Group("/api/v1", a.requireAuth(domain.RoleAdmin))
	admin.PATCH("/store", a.handleUpdateStore)
	admin.POST("/products", a.handleCreateProduct)
	admin.POST("/products/:id/restock", a.handleRestockProduct)
	admin.GET("/reports/daily", a.handleDailyReport)
	admin.GET("/audit-logs", a.handleAuditLogs)
	admin.GET("/users/cashiers", a.handleListCashiers)
	admin.POST("/users/cashiers", a.handleCreateCashier)

	return r
}

func (a *API) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "Origin", "Idempotency-Key", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range a.allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(a.allowedOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://127.0.0.1:3000", "http://localhost:3000"}
		return cfg
	}
	cfg.AllowOrigins = a.allowedOrigins
	return cfg
}

func (a *API) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")

		method := c.Request.Method
		if method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

func (a *API) requireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			abortError(c, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		session, err := a.auth.ParseToken(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(session.Role, roles) {
			abortError(c, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func sessionFrom(c *gin.Context) domain.Session {
	session, _ := c.MustGet(sessionKey).(domain.Session)
	return session
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c.Request)) {
		writeError(c, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleGetStore(c *gin.Context) {
	st, err := a.service.GetStore(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": st})
}

func (a *API) handleStoreCategories(c *gin.Context) {
	categories := domain.StoreCategories()
	out := make([]gin.H, 0, len(categories))
	for _, category := range categories {
		out = append(out, gin.H{"value": category, "label": category.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

func (a *API) handleUpdateStore(c *gin.Context) {
	var req domain.StoreUpdateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	st, err := a.service.UpdateStore(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": st})
}

func (a *API) handleListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *API) handleCreateProduct(c *gin.Context) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (a *API) handleRestockProduct(c *gin.Context) {
	var req domain.RestockRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.RestockProduct(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (a *API) handleStockMovements(c *gin.Context) {
	limit := parsePositiveLimit(c.Query("limit"), 100, 500)
	movements, err := a.service.ListStockMovements(c.Request.Context(), sessionFrom(c), c.Query("product_id"), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func (a *API) handleCheckout(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	resp, err := a.service.Checkout(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (a *API) handleListReceipts(c *gin.Context) {
	opts := report.ListOptions{
		Date:  c.Query("date"),
		Limit: parsePositiveLimit(c.Query("limit"), 50, 500),
	}
	switch strings.ToLower(strings.TrimSpace(c.Query("manual"))) {
	case "", "exclude":
	case "include":
		opts.IncludeManual = true
	case "only":
		opts.OnlyManual = true
	default:
		writeError(c, http.StatusBadRequest, errors.New("manual must be one of exclude, include, only"))
		return
	}

	receipts, err := a.service.ListReceipts(c.Request.Context(), sessionFrom(c), opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

func (a *API) handleGetReceipt(c *gin.Context) {
	rcpt, err := a.service.GetReceipt(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": rcpt})
}

func (a *API) handleReceiptPDF(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)
	rcpt, err := a.service.GetReceipt(ctx, session, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	st, err := a.service.GetStore(ctx, session)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	pdf, err := printout.ReceiptPDF(st, rcpt)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"struk-%s.pdf\"", rcpt.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (a *API) handleDailyReport(c *gin.Context) {
	summary, err := a.service.DailySummary(c.Request.Context(), sessionFrom(c), c.Query("date"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(c.Query("format"))) {
	case "csv":
		body, err := dailySummaryToCSV(summary)
		if err != nil {
			writeError(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"daily-report-%s.csv\"", summary.Date))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
	default:
		c.JSON(http.StatusOK, summary)
	}
}

func (a *API) handleListShoppingItems(c *gin.Context) {
	items, err := a.service.ListShoppingItems(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *API) handleCreateShoppingItem(c *gin.Context) {
	var req domain.ShoppingItemCreateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.CreateShoppingItem(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (a *API) handleUpdateShoppingItem(c *gin.Context) {
	var req struct {
		IsCompleted *bool `json:"is_completed"`
	}
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if req.IsCompleted == nil {
		writeError(c, http.StatusBadRequest, errors.New("is_completed is required"))
		return
	}
	item, err := a.service.SetShoppingItemCompleted(c.Request.Context(), sessionFrom(c), c.Param("id"), *req.IsCompleted)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (a *API) handleRestockSuggestions(c *gin.Context) {
	threshold := 0
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, errors.New("threshold must be a number"))
			return
		}
		threshold = parsed
	}
	suggestions, err := a.service.RestockSuggestions(c.Request.Context(), sessionFrom(c), threshold)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (a *API) handleAuditLogs(c *gin.Context) {
	logs, err := a.service.ListAuditLogs(c.Request.Context(), sessionFrom(c), parsePositiveLimit(c.Query("limit"), 100, 500))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (a *API) handleListCashiers(c *gin.Context) {
	cashiers := a.auth.ListCashiers(c.Request.Context(), sessionFrom(c).StoreID)
	c.JSON(http.StatusOK, gin.H{"cashiers": cashiers})
}

func (a *API) handleCreateCashier(c *gin.Context) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	cashier, err := a.auth.CreateCashier(c.Request.Context(), sessionFrom(c).StoreID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cashier": cashier})
}

func dailySummaryToCSV(summary domain.SalesSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", summary.Date},
		{"summary", "store_id", summary.StoreID},
		{"summary", "transactions", strconv.FormatInt(summary.Transactions, 10)},
		{"summary", "gross_sales", strconv.FormatInt(summary.GrossSales, 10)},
		{"summary", "discount", strconv.FormatInt(summary.Discount, 10)},
		{"summary", "net_sales", strconv.FormatInt(summary.NetSales, 10)},
		{"summary", "profit", strconv.FormatInt(summary.Profit, 10)},
	}
	for _, p := range summary.ByPayment {
		rows = append(rows,
			[]string{"payment", p.PaymentMethod + "_transactions", strconv.FormatInt(p.Transactions, 10)},
			[]string{"payment", p.PaymentMethod + "_total", strconv.FormatInt(p.Total, 10)},
		)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeServiceError maps domain and store errors to HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		shortage   *domain.InsufficientStockError
		conflict   *domain.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &shortage):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"code":      "insufficient_stock",
			"shortages": shortage.Shortages,
			"retryable": false,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "stock changed while checking out, please retry",
			"code":        "concurrency_conflict",
			"product_ids": conflict.ProductIDs,
			"retryable":   true,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "validation",
			"field": validation.Field,
		})
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(c, http.StatusConflict, err)
	case errors.Is(err, domain.ErrPersistence):
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("persistence failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "could not save, please retry",
			"code":      "persistence",
			"retryable": true,
		})
	default:
		writeError(c, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func abortError(c *gin.Context, status int, err error) {
	writeError(c, status, err)
	c.Abort()
}

// writeError hides internal details behind a generic message for 5xx.
func writeError(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Str("path", c.Request.URL.Path).Msg("internal error")
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}
