// Package middleware holds fiber middleware shared by the API routes.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// APIKeyHeader is the alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests that do not carry one of keys, either as
// "Authorization: Bearer <key>" or in the X-API-Key header. With no keys
// configured every request passes.
func APIKey(keys []string) fiber.Handler {
	digests := make([][sha256.Size]byte, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			digests = append(digests, sha256.Sum256([]byte(key)))
		}
	}

	return func(c fiber.Ctx) error {
		if len(digests) == 0 {
			return c.Next()
		}

		key := extractAPIKey(c)
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API key"})
		}
		if !matchesAny(sha256.Sum256([]byte(key)), digests) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API key"})
		}
		return c.Next()
	}
}

// matchesAny compares against every digest so timing does not reveal which
// key matched.
func matchesAny(digest [sha256.Size]byte, digests [][sha256.Size]byte) bool {
	matched := 0
	for _, d := range digests {
		matched |= subtle.ConstantTimeCompare(digest[:], d[:])
	}
	return matched == 1
}

func extractAPIKey(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(c.Get(APIKeyHeader))
}
