//go:build docker

package cli

import "github.com/gofiber/fiber/v3"

// In containers the proxy lives on the private bridge network.
func proxyTrust() fiber.TrustProxyConfig {
	return fiber.TrustProxyConfig{Private: true}
}
