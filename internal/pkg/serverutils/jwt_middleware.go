package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingToken = errors.New("missing token")

// BearerToken reads the token from the "token" query parameter (browsers
// cannot set headers on websocket handshakes) or the Authorization header.
func BearerToken(ctx *fiber.Ctx) string {
	if token := ctx.Query("token"); token != "" {
		return token
	}
	authHeader := ctx.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// ParseSubject verifies an HMAC-signed token and returns its subscriber id,
// taken from "sub" or, for older tokens, "user_id".
func ParseSubject(tokenStr, secret string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fiber.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	return "", fiber.ErrUnauthorized
}

// JwtMiddleware guards a route group when secret is set. An empty secret
// leaves the group open.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}
		subject, err := ParseSubject(BearerToken(ctx), secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Invalid token"))
		}
		ctx.Locals("subscriber_id", subject)
		return ctx.Next()
	}
}
