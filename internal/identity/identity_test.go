package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance-ledger-go/internal/database/dbtest"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsFor(sub string, exp time.Duration) Claims {
	return Claims{
		Email: sub + "@example.com",
		Name:  "Test " + sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://auth.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
}

func TestResolve(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.User(t, db, "user_known")
	r := NewJWTResolver(db, secret, "https://auth.example.com")

	wrongIssuer := claimsFor("user_known", time.Hour)
	wrongIssuer.Issuer = "https://evil.example.com"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", sign(t, jwt.SigningMethodHS256, []byte(secret), claimsFor("user_known", time.Hour)), nil},
		{"empty", "", ErrUnauthenticated},
		{"garbage", "not.a.jwt", ErrUnauthenticated},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(secret), claimsFor("user_known", -time.Hour)), ErrUnauthenticated},
		{"wrong key", sign(t, jwt.SigningMethodHS256, []byte("other"), claimsFor("user_known", time.Hour)), ErrUnauthenticated},
		{"wrong alg", sign(t, jwt.SigningMethodHS512, []byte(secret), claimsFor("user_known", time.Hour)), ErrUnauthenticated},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, []byte(secret), wrongIssuer), ErrUnauthenticated},
		{"unknown subject", sign(t, jwt.SigningMethodHS256, []byte(secret), claimsFor("user_new", time.Hour)), ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ID != user.ID {
				t.Errorf("Resolve() user = %s, want %s", got.ID, user.ID)
			}
		})
	}
}

func TestProvision(t *testing.T) {
	db := dbtest.Open(t)
	r := NewJWTResolver(db, secret, "")
	token := sign(t, jwt.SigningMethodHS256, []byte(secret), claimsFor("user_fresh", time.Hour))

	first, created, err := r.Provision(context.Background(), token)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if !created || first.Email != "user_fresh@example.com" || first.Name != "Test user_fresh" {
		t.Errorf("Provision() = %+v, created %v", first, created)
	}

	again, created, err := r.Provision(context.Background(), token)
	if err != nil {
		t.Fatalf("Provision() second error = %v", err)
	}
	if created || again.ID != first.ID {
		t.Errorf("second Provision() created a new row: %s vs %s", again.ID, first.ID)
	}

	resolved, err := r.Resolve(context.Background(), token)
	if err != nil || resolved.ID != first.ID {
		t.Errorf("Resolve() after provision = %v, %v", resolved, err)
	}
}
