package xid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("mv")
	b := New("mv")
	if !strings.HasPrefix(a, "mv-") {
		t.Fatalf("expected prefix, got %s", a)
	}
	if a == b {
		t.Fatalf("expected unique ids")
	}
	if !Valid(a, "mv-") {
		t.Fatalf("expected %s to be valid", a)
	}
}

func TestValidRejectsWrongPrefix(t *testing.T) {
	if Valid("MNL-"+UUID(), "mv-") {
		t.Fatalf("prefix mismatch must be invalid")
	}
	if !Valid(UUID(), "") {
		t.Fatalf("bare uuid must be valid")
	}
}
