package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 tokens whose subject is the user id.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrNoIdentity
	}

	var c claims
	_, err := jwt.ParseWithClaims(credential, &c, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrNoIdentity)
	}
	role := c.Role
	if role != RoleAdmin {
		role = RoleCustomer
	}
	return &Identity{ID: c.Subject, Role: role}, nil
}

// Issue signs a token for id. Login is handled elsewhere; this is used by
// tests and tooling.
func (r *JWTResolver) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.ID == "" {
		return "", errors.New("identity id is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
