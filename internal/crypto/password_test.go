package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher error: %v", err)
	}
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if strings.Contains(hash, "secret") {
		t.Fatalf("hash must not contain the plaintext")
	}
	if err := hasher.Check(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := hasher.Check(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected password mismatch, got %v", err)
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher error: %v", err)
	}
	first, _ := hasher.Hash("SenhaSegura123")
	second, _ := hasher.Hash("SenhaSegura123")
	if first == second {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestPasswordHasherRejectsBadInput(t *testing.T) {
	if _, err := NewPasswordHasher(bcrypt.MaxCost + 1); err == nil {
		t.Fatalf("expected invalid cost to error")
	}
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher error: %v", err)
	}
	if _, err := hasher.Hash(""); err == nil {
		t.Fatalf("expected empty password to error")
	}
	if err := hasher.Check("", "secret"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected empty hash to mismatch")
	}
	if err := hasher.Check("not-a-bcrypt-hash", "secret"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected malformed hash to mismatch")
	}
}
