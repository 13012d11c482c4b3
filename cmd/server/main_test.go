package main

import (
	"testing"
	"time"

	"kasirtoko/backend/internal/config"
	"kasirtoko/backend/internal/pricing"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateConfigRejectsWeakSecret(t *testing.T) {
	_, err := validateConfig(config.Config{AuthSecret: "short", CheckoutCommitTimeout: time.Second})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateConfigRejectsUnknownProfitPolicy(t *testing.T) {
	_, err := validateConfig(config.Config{AuthSecret: strongSecret, ProfitPolicy: "gross", CheckoutCommitTimeout: time.Second})
	if err == nil {
		t.Fatalf("expected unknown profit policy to be rejected")
	}
}

func TestValidateConfigAcceptsStrongValues(t *testing.T) {
	policy, err := validateConfig(config.Config{
		AuthSecret:            strongSecret,
		ProfitPolicy:          "net_of_discount",
		CheckoutCommitTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
	if policy != pricing.ProfitNetOfDiscount {
		t.Fatalf("expected net_of_discount policy, got %s", policy)
	}
}
