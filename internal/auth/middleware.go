package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shalak/assetgridapp/internal/automation"
	"github.com/shalak/assetgridapp/internal/model"
)

// Middleware returns a Fiber middleware that validates JWT bearer tokens
// and sets the UserContext on the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return automation.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return automation.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return automation.UnauthorizedError("Invalid or expired token")
		}

		user, err := UserFromClaims(claims)
		if err != nil {
			return automation.UnauthorizedError("Invalid token subject")
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// GetUser extracts the UserContext from a Fiber context.
func GetUser(c *fiber.Ctx) *model.UserContext {
	user, _ := c.Locals("user").(*model.UserContext)
	return user
}
