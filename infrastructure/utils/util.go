package utils

import (
	"time"

	"crm-social/infrastructure/logger"

	"github.com/golang-jwt/jwt"
)

// GenerateToken signs payload with HS256, the scheme the Auth middleware verifies.
func GenerateToken(payload map[string]interface{}, secretKey string) (string, error) {
	var claims jwt.MapClaims = payload
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}

// UserToken issues a CRM user token carrying the claims the Auth middleware reads.
func UserToken(userID, userName string, ttl time.Duration, secretKey string) (string, error) {
	now := time.Now()
	return GenerateToken(map[string]interface{}{
		"iss":       userID,
		"sub":       userID,
		"user_name": userName,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}, secretKey)
}
