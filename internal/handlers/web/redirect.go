package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/audit"
	"github.com/onsell/backoffice/internal/middlewares/csrf"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/render"
)

// respond answers a state-changing request: JSON clients get the envelope
// with the redirect target, browsers are sent there with 303.
func respond(ctx *fiber.Ctx, message string, location string, data fiber.Map) error {
	if render.WantsJSON(ctx) {
		if data == nil {
			data = fiber.Map{}
		}
		data["redirect"] = location
		return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{
			Success: true,
			Message: message,
			Data:    data,
		})
	}
	return ctx.Redirect(location, fiber.StatusSeeOther)
}

func requestInfo(ctx *fiber.Ctx) audit.RequestInfo {
	return audit.RequestInfo{
		URL:       ctx.OriginalURL(),
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func csrfToken(ctx *fiber.Ctx) string {
	return csrf.Get(sessions.Get(ctx)).Token
}

func bannerFor(ac *acting.Context) *render.ImpersonationBanner {
	if ac == nil || !ac.IsImpersonating() {
		return nil
	}
	return &render.ImpersonationBanner{
		OriginalName: ac.Impersonation.OriginalUser.Name,
		TargetType:   string(ac.Impersonation.Target.Type),
		TargetName:   ac.Impersonation.Target.Name,
	}
}
