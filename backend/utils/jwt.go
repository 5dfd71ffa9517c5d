package utils

import (
	"errors"
	"strings"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// Claims identifies a user by email. Roles are looked up per request, never
// read from the token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func GenerateJWTToken(email string, cfg *config.Config) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseJWTToken validates a raw token and returns the email claim.
func ParseJWTToken(tokenString string, cfg *config.Config) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", apperr.Unauthorized("Token expired. Please login again.")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", apperr.Unauthorized("Invalid token format.")
		default:
			return "", apperr.Unauthorized("Invalid token. Please login again.")
		}
	}
	if !token.Valid || claims.Email == "" {
		return "", apperr.Unauthorized("Invalid token. Please login again.")
	}
	return claims.Email, nil
}

// ExtractEmailFromToken reads the bearer token of a request.
func ExtractEmailFromToken(c *fiber.Ctx, cfg *config.Config) (string, error) {
	fields := strings.Fields(c.Get(fiber.HeaderAuthorization))
	var tokenString string
	switch {
	case len(fields) >= 2 && strings.EqualFold(fields[0], "Bearer"):
		tokenString = fields[1]
	case len(fields) == 1 && !strings.EqualFold(fields[0], "Bearer"):
		tokenString = fields[0]
	}
	if tokenString == "" {
		return "", apperr.Unauthorized("No token provided")
	}
	return ParseJWTToken(tokenString, cfg)
}
