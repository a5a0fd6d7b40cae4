package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := h.Verify("correct horse battery staple", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("expected clean mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if _, err := h.Verify("pw", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestHashRejectsEmpty(t *testing.T) {
	if _, err := NewHasher(bcrypt.MinCost).Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := NewHasher(bcrypt.MinCost)
	hash, err := weak.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	strong := NewHasher(bcrypt.MinCost + 1)
	needs, err := strong.NeedsRehash(hash)
	if err != nil || !needs {
		t.Fatalf("expected rehash, got %v %v", needs, err)
	}
	if needs, _ := weak.NeedsRehash(hash); needs {
		t.Fatal("same cost must not need rehash")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if got := NewHasher(0).Cost(); got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewHasher(1).Cost(); got != bcrypt.MinCost {
		t.Fatalf("expected min cost, got %d", got)
	}
	if got := NewHasher(99).Cost(); got != bcrypt.MaxCost {
		t.Fatalf("expected max cost, got %d", got)
	}
}
