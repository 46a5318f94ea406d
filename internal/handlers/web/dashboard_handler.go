package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/render"
)

// DashboardHandler serves the landing page of each tier. Tenant dashboards
// show the tenant resolved for the request, impersonated or not.
type DashboardHandler struct {
	impersonateService ImpersonateService
}

func (h *DashboardHandler) GetHome(ctx *fiber.Ctx) error {
	ac := acting.From(ctx)
	if ac == nil {
		return ctx.Redirect("/login")
	}
	return ctx.Redirect(acting.DashboardFor(ac.PrimaryRole()))
}

func (h *DashboardHandler) GetAdminDashboard(ctx *fiber.Ctx) error {
	ac := acting.From(ctx)
	if render.WantsJSON(ctx) {
		return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{
			Success: true,
			Data:    fiber.Map{"actor": ac.ActorName, "roles": ac.Roles},
		})
	}
	return render.RenderDashboardPage(ctx, render.DashboardPageData{
		Title:         "Admin dashboard",
		CSRFToken:     csrfToken(ctx),
		Impersonation: bannerFor(ac),
	})
}

func (h *DashboardHandler) tenantDashboard(ctx *fiber.Ctx, expected acting.TenantType, title string) error {
	ac := acting.From(ctx)
	tenant, err := h.impersonateService.ResolveEffectiveTenant(ctx.Context(), ac, expected)
	if err != nil {
		return err
	}
	if render.WantsJSON(ctx) {
		return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{
			Success: true,
			Data: fiber.Map{
				"tenant":        tenant,
				"impersonating": ac.IsImpersonating(),
			},
		})
	}
	return render.RenderDashboardPage(ctx, render.DashboardPageData{
		Title:         title,
		TenantType:    string(tenant.Type),
		TenantName:    tenant.Name,
		CSRFToken:     csrfToken(ctx),
		Impersonation: bannerFor(ac),
	})
}

func (h *DashboardHandler) GetAgencyDashboard(ctx *fiber.Ctx) error {
	return h.tenantDashboard(ctx, acting.TenantAgency, "Agency dashboard")
}

func (h *DashboardHandler) GetClientDashboard(ctx *fiber.Ctx) error {
	return h.tenantDashboard(ctx, acting.TenantClient, "Client dashboard")
}

func NewDashboardHandler(impersonateService ImpersonateService) *DashboardHandler {
	return &DashboardHandler{impersonateService: impersonateService}
}
