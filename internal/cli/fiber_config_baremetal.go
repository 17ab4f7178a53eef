//go:build !docker

package cli

import "github.com/gofiber/fiber/v3"

// Bare metal installs sit behind a reverse proxy on the same host.
func proxyTrust() fiber.TrustProxyConfig {
	return fiber.TrustProxyConfig{Loopback: true}
}
