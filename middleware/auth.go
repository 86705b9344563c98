package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"discoverly/models"
	"discoverly/services"
	"discoverly/utils"
)

// IdentityResolver maps a verified identity to the local user row.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, id services.Identity) (*models.User, error)
}

// Protected rejects requests without a valid identity token and stores the
// resolved user under Locals("user"). Failures to load the user are not
// auth failures; they go to the app's error handler.
func Protected(users IdentityResolver, secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, errMsg := extractToken(c)
		if errMsg != "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, errMsg, nil)
		}

		claims, err := utils.ParseIdentityToken(token, secret)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}
		user, err := resolve(c, users, claims)
		if err != nil {
			if services.KindOf(err) == services.KindUnauthorized {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
			}
			return err
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// Optional resolves the caller when a token is present and lets anonymous
// requests through. A bad token is treated as anonymous.
func Optional(users IdentityResolver, secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, errMsg := extractToken(c)
		if errMsg != "" {
			return c.Next()
		}
		claims, err := utils.ParseIdentityToken(token, secret)
		if err != nil {
			return c.Next()
		}
		user, err := resolve(c, users, claims)
		if err != nil {
			if services.KindOf(err) == services.KindUnauthorized {
				return c.Next()
			}
			return err
		}
		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// CurrentUser returns the user Protected or Optional stored, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

func extractToken(c *fiber.Ctx) (string, string) {
	// Authorization header first, then the access_token cookie
	if authHeader := c.Get("Authorization"); authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
			return "", "Invalid authorization format"
		}
		return tokenParts[1], ""
	}
	if token := c.Cookies("access_token"); token != "" {
		return token, ""
	}
	return "", "Authorization required"
}

func resolve(c *fiber.Ctx, users IdentityResolver, claims *utils.IdentityClaims) (*models.User, error) {
	return users.ResolveIdentity(c.UserContext(), services.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Avatar:  claims.Picture,
	})
}
