package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/inventory"
	"kasirtoko/backend/internal/pricing"
	"kasirtoko/backend/internal/receipt"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// Repository is the persistence a checkout needs.
type Repository interface {
	GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error)
	FindReceiptByIdempotency(ctx context.Context, storeID string, key string) (*domain.Receipt, error)
	CommitCheckout(ctx context.Context, commit store.CheckoutCommit) (*domain.Receipt, error)
}

type Config struct {
	MaxAttempts   int
	CommitTimeout time.Duration
	Backoff       time.Duration
	ProfitPolicy  pricing.ProfitPolicy
	Now           func() time.Time
}

type Request struct {
	Session        domain.Session
	Cart           *domain.Cart
	Discount       domain.Discount
	PaymentMethod  string
	Kind           domain.ReceiptKind
	IdempotencyKey string
	// CreatedAt backdates manual receipts.
	CreatedAt *time.Time
}

type Result struct {
	State     State
	History   []State
	Receipt   *domain.Receipt
	Attempts  int
	Duplicate bool
}

type Coordinator struct {
	repo          Repository
	calculator    pricing.Calculator
	assembler     *receipt.Assembler
	maxAttempts   int
	commitTimeout time.Duration
	backoff       time.Duration
	logger        zerolog.Logger
}

func NewCoordinator(repo Repository, cfg Config) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	return &Coordinator{
		repo:          repo,
		calculator:    pricing.NewCalculator(cfg.ProfitPolicy),
		assembler:     receipt.NewAssembler(cfg.Now),
		maxAttempts:   cfg.MaxAttempts,
		commitTimeout: cfg.CommitTimeout,
		backoff:       cfg.Backoff,
		logger:        log.With().Str("component", "checkout").Logger(),
	}
}

// Checkout validates the cart, prices it, assembles a receipt and commits it
// together with the stock decrements as one unit. A commit that loses a stock
// race is retried from validation up to the configured number of attempts.
// On success the cart is cleared; on any failure it is left untouched.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (Result, error) {
	res := Result{State: StateIdle, History: []State{StateIdle}}
	logger := c.logger.With().Str("store_id", req.Session.StoreID).Str("user_id", req.Session.UserID).Logger()

	c.transition(&res, logger, StateValidating)
	if err := req.Session.Validate(); err != nil {
		return c.reject(&res, logger, err)
	}
	if req.Cart == nil || req.Cart.IsEmpty() {
		return c.reject(&res, logger, domain.NewValidationError("items", "cart is empty"))
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.ReceiptKindInventory
	}
	if kind != domain.ReceiptKindInventory && kind != domain.ReceiptKindManual {
		return c.reject(&res, logger, domain.NewValidationError("kind", fmt.Sprintf("unknown receipt kind %q", kind)))
	}
	if err := req.Discount.Validate(); err != nil {
		return c.reject(&res, logger, err)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := c.repo.FindReceiptByIdempotency(ctx, req.Session.StoreID, key)
		if err == nil {
			return c.duplicate(&res, logger, req.Cart, existing)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return c.fail(&res, logger, &domain.PersistenceError{Op: "lookup idempotency key", Err: err})
		}
	}

	lines := req.Cart.Lines()
	receiptID := receipt.NewID(kind)
	var conflicted []string

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res.Attempts = attempt
		if attempt > 1 {
			c.transition(&res, logger, StateValidating)
			if err := c.wait(ctx, attempt); err != nil {
				return c.fail(&res, logger, &domain.PersistenceError{Op: "checkout retry", Err: err})
			}
		}

		commit, err := c.prepare(ctx, req, kind, lines, receiptID, key)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInsufficientStock) {
				return c.reject(&res, logger, err)
			}
			return c.fail(&res, logger, err)
		}

		c.transition(&res, logger, StateCommitting)
		saved, err := c.commit(ctx, commit)
		switch {
		case err == nil:
			res.Receipt = saved
			c.transition(&res, logger, StateCommitted)
			req.Cart.Clear()
			logger.Info().
				Str("receipt_id", saved.ID).
				Str("kind", string(saved.Kind)).
				Int64("total", saved.Total).
				Int("attempt", attempt).
				Msg("checkout committed")
			return res, nil
		case errors.Is(err, store.ErrStockConflict):
			conflicted = decrementIDs(commit.Decrements)
			logger.Warn().Int("attempt", attempt).Strs("product_ids", conflicted).Msg("stock changed during checkout, revalidating")
			continue
		case errors.Is(err, store.ErrDuplicateReceipt) && key != "":
			existing, lookupErr := c.repo.FindReceiptByIdempotency(ctx, req.Session.StoreID, key)
			if lookupErr == nil {
				return c.duplicate(&res, logger, req.Cart, existing)
			}
			return c.fail(&res, logger, &domain.PersistenceError{Op: "commit checkout", Err: err})
		default:
			return c.fail(&res, logger, &domain.PersistenceError{Op: "commit checkout", Err: err})
		}
	}

	// Out of attempts. Stock that is now genuinely short is reported as such.
	c.transition(&res, logger, StateValidating)
	if _, err := c.prepare(ctx, req, kind, lines, receiptID, key); err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInsufficientStock) {
			return c.reject(&res, logger, err)
		}
		return c.fail(&res, logger, err)
	}
	return c.fail(&res, logger, &domain.ConcurrencyConflictError{ProductIDs: conflicted, Attempts: res.Attempts})
}

// prepare loads a fresh snapshot and produces the commit for one attempt.
func (c *Coordinator) prepare(ctx context.Context, req Request, kind domain.ReceiptKind, lines []domain.CartLine, receiptID string, key string) (store.CheckoutCommit, error) {
	ids := store.UniqueIDs(req.Cart.ProductIDs())
	snapshot, err := c.repo.GetProductsByIDs(ctx, req.Session.StoreID, ids)
	if err != nil {
		return store.CheckoutCommit{}, &domain.PersistenceError{Op: "load products", Err: err}
	}
	for _, id := range ids {
		if _, ok := snapshot[id]; !ok {
			return store.CheckoutCommit{}, domain.NewValidationError("product_id", fmt.Sprintf("unknown product %s", id))
		}
	}

	var auth inventory.Authorization
	if kind == domain.ReceiptKindInventory {
		auth, err = inventory.Authorize(lines, snapshot)
		if err != nil {
			return store.CheckoutCommit{}, err
		}
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		product := snapshot[line.ProductID]
		priced = append(priced, pricing.Line{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    product.SellPrice,
			UnitCost:     product.CostPrice,
			LineDiscount: line.LineDiscount,
		})
	}
	totals, err := c.calculator.Calculate(priced, req.Discount)
	if err != nil {
		return store.CheckoutCommit{}, err
	}

	rcpt, err := c.assembler.Assemble(receipt.Input{
		Session:        req.Session,
		Kind:           kind,
		Lines:          priced,
		Products:       snapshot,
		Totals:         totals,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: key,
		ReceiptID:      receiptID,
		CreatedAt:      req.CreatedAt,
	})
	if err != nil {
		return store.CheckoutCommit{}, err
	}

	commit := store.CheckoutCommit{Receipt: rcpt}
	if kind == domain.ReceiptKindInventory {
		commit.Decrements = auth.Decrements
		commit.Movements = auth.Movements(req.Session, rcpt.ID, func() string { return xid.New("mv") }, rcpt.CreatedAt)
	}
	return commit, nil
}

// commit runs detached from the caller's cancellation so an in-flight write
// always finishes or rolls back on its own; only the commit timeout bounds it.
func (c *Coordinator) commit(ctx context.Context, commit store.CheckoutCommit) (*domain.Receipt, error) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()
	return c.repo.CommitCheckout(commitCtx, commit)
}

func (c *Coordinator) wait(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(attempt-1)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Coordinator) transition(res *Result, logger zerolog.Logger, next State) {
	logger.Debug().Str("from", string(res.State)).Str("to", string(next)).Msg("checkout state")
	res.State = next
	res.History = append(res.History, next)
}

func (c *Coordinator) duplicate(res *Result, logger zerolog.Logger, cart *domain.Cart, existing *domain.Receipt) (Result, error) {
	res.Receipt = existing
	res.Duplicate = true
	c.transition(res, logger, StateCommitted)
	cart.Clear()
	logger.Info().Str("receipt_id", existing.ID).Msg("checkout replayed by idempotency key")
	return *res, nil
}

func (c *Coordinator) reject(res *Result, logger zerolog.Logger, err error) (Result, error) {
	c.transition(res, logger, StateRejected)
	logger.Info().Err(err).Msg("checkout rejected")
	return *res, err
}

func (c *Coordinator) fail(res *Result, logger zerolog.Logger, err error) (Result, error) {
	c.transition(res, logger, StateFailed)
	logger.Error().Err(err).Int("attempts", res.Attempts).Msg("checkout failed")
	return *res, err
}

func decrementIDs(decrements []inventory.StockDecrement) []string {
	ids := make([]string, 0, len(decrements))
	for _, d := range decrements {
		ids = append(ids, d.ProductID)
	}
	return ids
}
