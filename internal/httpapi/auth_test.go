package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kasirtoko/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func legacyAdminStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				StoreID:   "toko-berkah",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := legacyAdminStore()

	manager := NewAuthManager("test-secret", time.Hour, store)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "Admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.StoreID != "toko-berkah" {
		t.Fatalf("expected store id in login response, got %q", resp.StoreID)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := legacyAdminStore()
	user := store.users["admin"]
	user.Active = false
	store.users["admin"] = user

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if !errors.Is(err, errInactiveAccount) {
		t.Fatalf("expected inactive account error, got %v", err)
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	store := legacyAdminStore()

	manager := NewAuthManager("test-secret", time.Hour, store)
	cashier, err := manager.CreateCashier(context.Background(), "toko-berkah", domain.CashierCreateRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "kasirbaru" || cashier.StoreID != "toko-berkah" {
		t.Fatalf("unexpected cashier %+v", cashier)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "kasirbaru" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected cashier to be saved")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed cashier failed: %v", err)
	}
	if resp.Role != domain.RoleCashier {
		t.Fatalf("expected cashier role, got %s", resp.Role)
	}

	if _, err := manager.CreateCashier(context.Background(), "toko-berkah", domain.CashierCreateRequest{
		Username: "kasirbaru",
		Password: "another1",
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}
}

func TestListCashiersIsStoreScoped(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, legacyAdminStore())
	ctx := context.Background()
	if _, err := manager.CreateCashier(ctx, "toko-berkah", domain.CashierCreateRequest{Username: "kasir1", Password: "pass1234"}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if _, err := manager.CreateCashier(ctx, "atk-jaya", domain.CashierCreateRequest{Username: "kasir2", Password: "pass1234"}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}

	cashiers := manager.ListCashiers(ctx, "toko-berkah")
	if len(cashiers) != 1 || cashiers[0].Username != "kasir1" {
		t.Fatalf("expected only kasir1, got %+v", cashiers)
	}
}

func TestParseTokenCarriesStoreBinding(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, legacyAdminStore())
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	session, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if session.StoreID != "toko-berkah" || session.UserID != "admin" || session.Role != domain.RoleAdmin {
		t.Fatalf("unexpected session %+v", session)
	}

	other := NewAuthManager("different-secret", time.Hour, nil)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	unbound, err := manager.sign("ghost", domain.RoleAdmin, "", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(unbound); err == nil {
		t.Fatalf("expected token without store to be rejected")
	}

	expired, err := manager.sign("admin", domain.RoleAdmin, "toko-berkah", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
