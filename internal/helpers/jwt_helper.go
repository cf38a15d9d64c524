package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenLifetime = 24 * time.Hour

type Claims struct {
	UserID uuid.UUID
	Role   string
}

func GenerateToken(secret string, userID uuid.UUID, role string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(TokenLifetime).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	rawID, _ := mapClaims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id claim: %w", err)
	}
	role, _ := mapClaims["role"].(string)
	return &Claims{UserID: userID, Role: role}, nil
}
