package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

// Claims represents the JWT claims carried by access tokens. Tokens are
// issued by an external identity provider; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// ParseAccessToken validates and parses a JWT, returning the claims.
func ParseAccessToken(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// UserFromClaims builds the request user from verified claims. The subject
// must be the user's UUID.
func UserFromClaims(claims *Claims) (*model.UserContext, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return &model.UserContext{ID: id, Email: claims.Email}, nil
}
