package cli

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// A 5000-record batch comfortably fits.
const maxRequestBody = 8 << 20

// createFiberConfig returns the API server settings. Which proxies are
// trusted depends on the build: see proxyTrust.
func createFiberConfig(version string) fiber.Config {
	return fiber.Config{
		AppName:          "Kohort " + version,
		BodyLimit:        maxRequestBody,
		ReadTimeout:      30 * time.Second,
		IdleTimeout:      2 * time.Minute,
		ProxyHeader:      fiber.HeaderXForwardedFor,
		TrustProxy:       true,
		TrustProxyConfig: proxyTrust(),
	}
}
