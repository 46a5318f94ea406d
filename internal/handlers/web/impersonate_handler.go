package web

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/audit"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/render"
)

type ImpersonateHandler struct {
	impersonateService ImpersonateService
}

func recordImpersonation(ctx *fiber.Ctx, ac *acting.Context, target acting.Target, started bool) {
	err := audit.RecordImpersonation(ctx.Context(), audit.ImpersonationRecord{
		RequestInfo: requestInfo(ctx),
		ActorID:     ac.ActorID,
		TargetType:  string(target.Type),
		TargetID:    target.ID,
		TargetName:  target.Name,
		Started:     started,
	})
	if err != nil {
		slog.Error("Failed to record impersonation", "user_id", ac.ActorID, "target_type", target.Type, "target_id", target.ID, "error", err)
	}
}

func (h *ImpersonateHandler) GetTargets(ctx *fiber.Ctx) error {
	targets, err := h.impersonateService.ListTargets(ctx.Context(), acting.From(ctx))
	if err != nil {
		return err
	}
	return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{Success: true, Data: targets})
}

func (h *ImpersonateHandler) start(ctx *fiber.Ctx, targetType acting.TenantType) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return impersonate.ErrTargetNotFound
	}

	ac := acting.From(ctx)
	imp, err := h.impersonateService.Start(ctx.Context(), ac, targetType, uint(id))
	if err != nil {
		return err
	}

	session := sessions.Get(ctx)
	session.Impersonation = *imp
	session.Save()
	recordImpersonation(ctx, ac, imp.Target, true)

	return respond(ctx, fmt.Sprintf(MsgImpersonationStarted, imp.Target.Name),
		acting.DashboardFor(targetType.TransientRole()),
		fiber.Map{"impersonation": imp})
}

func (h *ImpersonateHandler) PostStartAgency(ctx *fiber.Ctx) error {
	return h.start(ctx, acting.TenantAgency)
}

func (h *ImpersonateHandler) PostStartClient(ctx *fiber.Ctx) error {
	return h.start(ctx, acting.TenantClient)
}

// PostStop restores the actor's roles and clears the impersonation. Stopping
// without an active impersonation still restores any pending snapshot.
func (h *ImpersonateHandler) PostStop(ctx *fiber.Ctx) error {
	ac := acting.From(ctx)
	location, err := h.impersonateService.Stop(ctx.Context(), ac)
	if err != nil {
		return err
	}

	session := sessions.Get(ctx)
	session.Impersonation = acting.Impersonation{}
	session.Save()
	if ac.IsImpersonating() {
		recordImpersonation(ctx, ac, ac.Impersonation.Target, false)
	}
	return respond(ctx, MsgImpersonationStopped, location, nil)
}

func NewImpersonateHandler(impersonateService ImpersonateService) *ImpersonateHandler {
	return &ImpersonateHandler{impersonateService: impersonateService}
}
