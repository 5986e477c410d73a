package jwt

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeUUID struct{}

func (fakeUUID) Generate() string { return "0192f0e4-0000-7000-8000-000000000001" }

func newTestSymmetric(t *testing.T, clk *fakeClock) *Symmetric {
	t.Helper()

	s, err := NewHS512(Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "gostepup",
		Audiences: []string{"gostepup-web"},
		TTL:       7 * 24 * time.Hour,
		Clock:     clk,
		UUID:      fakeUUID{},
	})
	if err != nil {
		t.Fatalf("NewHS512() error = %v", err)
	}
	return s
}

func TestNewHS512_ShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewHS512(Config{Secret: []byte("short")})
	if err != ErrSigningKeyTooShort {
		t.Fatalf("NewHS512() error = %v, want %v", err, ErrSigningKeyTooShort)
	}
}

func TestSymmetric_GenerateVerify(t *testing.T) {
	t.Parallel()

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := &fakeClock{now: time.Now()}
		s := newTestSymmetric(t, clk)

		// Act
		token, err := s.Generate(42, "a@b.io")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		claims, err := s.Verify(token)

		// Assert
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if claims.AccountID != 42 || claims.Email != "a@b.io" || claims.Subject != "42" {
			t.Fatalf("claims = %+v", claims)
		}
	})

	t.Run("expired after seven days", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := &fakeClock{now: time.Now()}
		s := newTestSymmetric(t, clk)
		token, err := s.Generate(42, "a@b.io")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		// Act
		clk.now = clk.now.Add(7*24*time.Hour + time.Minute)
		_, err = s.Verify(token)

		// Assert
		if err != ErrTokenExpired {
			t.Fatalf("Verify() error = %v, want %v", err, ErrTokenExpired)
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{now: time.Now()}
		s := newTestSymmetric(t, clk)
		token, err := s.Generate(42, "a@b.io")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		if _, err := s.Verify(token + "x"); err == nil {
			t.Fatalf("Verify() error = nil, want error")
		}
	})
}

func TestAuthContext(t *testing.T) {
	t.Parallel()

	if GetAuth(context.Background()) != nil {
		t.Fatalf("GetAuth(empty) != nil")
	}

	ctx := SetAuth(context.Background(), Claims{AccountID: 7})
	if got := GetAuth(ctx); got == nil || got.AccountID != 7 {
		t.Fatalf("GetAuth() = %+v", got)
	}
}
