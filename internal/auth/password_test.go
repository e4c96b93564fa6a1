package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestVerifyPassword_ConfiguredHash(t *testing.T) {
	// What an operator pastes into security.login.password_hash.
	hash, err := HashPassword("kitchen-lights-42")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"configured password", "kitchen-lights-42", true},
		{"wrong password", "kitchen-lights-43", false},
		{"different case", "Kitchen-Lights-42", false},
		{"empty password", "", false},
		{"trailing space", "kitchen-lights-42 ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword(tt.password, hash)
			if err != nil {
				t.Fatalf("VerifyPassword() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, ok, tt.want)
			}
		})
	}
}

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("admin")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("hash = %q, want argon2id v=19 with default cost", hash)
	}

	p, err := parsePHC(hash)
	if err != nil {
		t.Fatalf("parsePHC() error = %v", err)
	}
	if len(p.salt) != argonSaltLen || len(p.key) != argonKeyLen {
		t.Errorf("salt/key lengths = %d/%d, want %d/%d", len(p.salt), len(p.key), argonSaltLen, argonKeyLen)
	}
	if p.String() != hash {
		t.Errorf("String() = %q, want %q", p.String(), hash)
	}
}

func TestHashPassword_FreshSaltEachTime(t *testing.T) {
	first, err := HashPassword("admin")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	second, err := HashPassword("admin")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if first == second {
		t.Error("hashing the same password twice produced identical strings")
	}
}

func TestVerifyPassword_HonoursStoredCost(t *testing.T) {
	// A hash minted with a cheaper cost still verifies after the defaults change.
	p := phc{memory: 8 * 1024, time: 1, threads: 2, salt: []byte("0123456789abcdef"), key: make([]byte, 16)}
	p.key = p.derive("old-password")

	ok, err := VerifyPassword("old-password", p.String())
	if err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v, want true", ok, err)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plain text", "letmein"},
		{"missing leading dollar", "argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"bcrypt", "$2b$10$abcdefghijklmnopqrstuv"},
		{"argon2i", "$argon2i$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"old version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"missing key", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ"},
		{"zero memory", "$argon2id$v=19$m=0,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"garbled params", "$argon2id$v=19$memory$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaGhhc2g"},
		{"empty key", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword("admin", tt.hash)
			if ok || !errors.Is(err, ErrMalformedHash) {
				t.Errorf("VerifyPassword() = %v, %v, want false and ErrMalformedHash", ok, err)
			}
		})
	}
}
