package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/render"
)

// RequireLogin rejects anonymous requests. Pages are redirected to the login
// form, API calls get 401.
func RequireLogin() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if acting.From(ctx) != nil {
			return ctx.Next()
		}
		if isAPIRequest(ctx) {
			return render.RenderJSON(ctx, fiber.StatusUnauthorized, render.APIResponse{
				Message: "Unauthenticated.",
			})
		}
		return ctx.Redirect("/login")
	}
}

// RequireAnyRole allows the request if the actor holds any of the roles.
// It must be chained after RequireLogin.
func RequireAnyRole(allowed ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		ac := acting.From(ctx)
		if ac == nil {
			return fiber.ErrUnauthorized
		}
		if !ac.HasAnyRole(allowed...) {
			return fiber.ErrForbidden
		}
		return ctx.Next()
	}
}
