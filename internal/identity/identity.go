// Package identity turns bearer credentials issued by the external auth
// provider into internal user rows.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"finance-ledger-go/internal/models"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound: the credential is valid but the subject was never provisioned.
	ErrUserNotFound = errors.New("user not found")
)

type Resolver interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
}

// Claims are the fields read from the provider's session token.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

type JWTResolver struct {
	db     *gorm.DB
	secret []byte
	issuer string
}

func NewJWTResolver(db *gorm.DB, secret, issuer string) *JWTResolver {
	return &JWTResolver{db: db, secret: []byte(secret), issuer: issuer}
}

// Verify checks the HS256 signature, expiry and issuer of credential.
func (r *JWTResolver) Verify(credential string) (*Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || len(r.secret) == 0 {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims, nil
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (*models.User, error) {
	claims, err := r.Verify(credential)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = r.db.WithContext(ctx).Where("clerk_user_id = ?", claims.Subject).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Provision returns the user row for a verified credential, creating it on
// first sign-in.
func (r *JWTResolver) Provision(ctx context.Context, credential string) (*models.User, bool, error) {
	claims, err := r.Verify(credential)
	if err != nil {
		return nil, false, err
	}

	var user models.User
	created := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("clerk_user_id = ?", claims.Subject).Take(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		user = models.User{
			ClerkUserID: claims.Subject,
			Email:       claims.Email,
			Name:        claims.Name,
			ImageURL:    claims.Picture,
		}
		created = true
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}
