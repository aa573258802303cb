package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crm-social/domain/model"
	"crm-social/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

type unauthorized struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

// Auth verifies the CRM bearer token and sets user_id from the token issuer.
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authorization := ctx.GetHeader("Authorization")
		raw, found := strings.CutPrefix(authorization, "Bearer ")
		if !found || raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized{ResponseCode: "401", ResponseMessage: "Unauthorized"})
			return
		}
		claims, err := parseClaims(raw, secretKey)
		if err != nil {
			logger.GetLogger().WithField("error", err).WithField("path", ctx.FullPath()).Debug("rejected bearer token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized{ResponseCode: "401", ResponseMessage: reason(err)})
			return
		}
		userID := claims.Issuer
		if userID == "" {
			userID = claims.Subject
		}
		if userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized{ResponseCode: "401", ResponseMessage: "Token has no subject"})
			return
		}
		ctx.Set("user_id", userID)
		ctx.Set("user_name", claims.UserName)
		ctx.Next()
	}
}

func parseClaims(raw, secretKey string) (*model.UserClaims, error) {
	var claims model.UserClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

func reason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return "That's not even a token"
		case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
			return "Timing is everything"
		}
	}
	return "Unauthorized"
}
