package middleware

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ValidateWebhookSecret verifies the shared secret on provider webhooks.
// Set DISABLE_WEBHOOK_VALIDATION=true to bypass it in local development.
func ValidateWebhookSecret(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
			return c.Next()
		}

		secret := os.Getenv("WEBHOOK_SECRET")
		if secret == "" {
			log.Error("❌ WEBHOOK_SECRET not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		provided := c.Get("X-Webhook-Secret")
		if provided == "" {
			provided = c.Query("secret")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			log.Warnf("⚠️ Webhook with invalid secret from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook secret",
			})
		}

		return c.Next()
	}
}
