package middlewares

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/users"
	"github.com/onsell/backoffice/model"
)

type ActorLoader interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	GetRoles(ctx context.Context, userID uint) ([]string, error)
}

// LoadActingContext builds the acting context of a logged in session. A session
// whose user no longer exists or was disabled is destroyed.
func LoadActingContext(loader ActorLoader) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		session := sessions.Get(ctx)
		if !session.IsLoggedIn() {
			return ctx.Next()
		}

		user, err := loader.GetUserByID(ctx.Context(), session.UserID)
		if errors.Is(err, users.ErrUserNotFound) || (err == nil && user.Disabled) {
			slog.Warn("Session user is gone or disabled", "user_id", session.UserID)
			if err := session.Destroy(); err != nil {
				return err
			}
			return ctx.Next()
		}
		if err != nil {
			return err
		}

		roles, err := loader.GetRoles(ctx.Context(), user.ID)
		if err != nil {
			return err
		}

		ac := &acting.Context{
			ActorID:   user.ID,
			ActorName: user.Name,
			Email:     user.Email,
			Roles:     roles,
			AgencyID:  user.AgencyID,
			ClientID:  user.ClientID,
			IP:        ctx.IP(),
		}
		if session.IsImpersonating() {
			imp := session.Impersonation
			ac.Impersonation = &imp
		}
		acting.With(ctx, ac)
		return ctx.Next()
	}
}
