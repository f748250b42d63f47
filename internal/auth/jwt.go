package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the opaque identity token the auth service issues and
// the messaging core consumes. UserID is only meaningful together with
// Role: each role has its own directory and its own id space.
type SessionClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken mints a session token. Token issuance belongs to the auth
// service, this exists so operators and tests can produce valid sessions.
func GenerateToken(userID int64, role string, key []byte) (string, error) {
	expiresAt := time.Now().Add(24 * time.Hour)

	claims := &SessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "school-messenger",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(key)
	if err != nil {
		log.Printf("[AUTH] ERROR: Failed to sign token for user %d (%s): %v", userID, role, err)
		return "", err
	}

	return tokenString, nil
}

func ValidateToken(tokenString string, key []byte) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			errDetail := fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			log.Printf("[AUTH] VALIDATION FAILED: %v", errDetail)
			return nil, errDetail
		}
		return key, nil
	})

	if err != nil {
		log.Printf("[AUTH] JWT Parse Error: %v", err)
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		if claims.UserID <= 0 || claims.Role == "" {
			return nil, errors.New("token missing identity claims")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
