package web

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/audit"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/render"
	"github.com/onsell/backoffice/internal/users"
)

type loginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginHandler handles back-office sign in and sign out.
type LoginHandler struct {
	userService        UserService
	impersonateService ImpersonateService
}

func (h *LoginHandler) GetLogin(ctx *fiber.Ctx) error {
	if ac := acting.From(ctx); ac != nil {
		return ctx.Redirect(acting.DashboardFor(ac.PrimaryRole()))
	}
	return render.RenderLoginPage(ctx, render.LoginPageData{CSRFToken: csrfToken(ctx)})
}

func (h *LoginHandler) loginFailed(ctx *fiber.Ctx, form loginForm, message string) error {
	if render.WantsJSON(ctx) {
		return render.RenderJSON(ctx, fiber.StatusUnauthorized, render.APIResponse{Message: message})
	}
	return render.RenderLoginPage(ctx, render.LoginPageData{
		Email:     form.Email,
		CSRFToken: csrfToken(ctx),
		ErrorMsg:  message,
	})
}

func (h *LoginHandler) PostLogin(ctx *fiber.Ctx) error {
	var form loginForm
	if err := ctx.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, MsgInvalidRequest)
	}
	form.Email = strings.TrimSpace(form.Email)

	user, err := h.userService.Authenticate(ctx.Context(), form.Email, form.Password)
	if err != nil {
		var message string
		switch {
		case errors.Is(err, users.ErrUserDisabled):
			message = MsgLoginUserDisabled
		case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrUserNotFound), errors.Is(err, users.ErrInvalidEmailAddress):
			message = MsgLoginWrongCredentials
		default:
			return err
		}
		rec := audit.LoginRecord{
			RequestInfo: requestInfo(ctx),
			Email:       form.Email,
			Reason:      err.Error(),
		}
		if err := audit.RecordLogin(ctx.Context(), rec); err != nil {
			slog.Error("Failed to record login failure", "email", form.Email, "error", err)
		}
		return h.loginFailed(ctx, form, message)
	}

	// a fresh session never carries an impersonation, so any snapshot left for
	// this user belongs to a session that ended without stopping
	if _, err := h.impersonateService.RestorePending(ctx.Context(), user.ID); err != nil {
		return err
	}

	session := sessions.Get(ctx)
	if err := session.Reset(sessions.SessionData{
		IP:        ctx.IP(),
		UserID:    user.ID,
		LoginTime: time.Now(),
	}); err != nil {
		return err
	}

	if err := audit.RecordLogin(ctx.Context(), audit.LoginRecord{
		RequestInfo: requestInfo(ctx),
		UserID:      user.ID,
		Email:       user.Email,
		Success:     true,
	}); err != nil {
		slog.Error("Failed to record login", "user_id", user.ID, "error", err)
	}

	roles, err := h.userService.GetRoles(ctx.Context(), user.ID)
	if err != nil {
		return err
	}
	slog.Info("User logged in", "user_id", user.ID, "ip", ctx.IP())
	return respond(ctx, MsgLoginSucceeded, acting.DashboardFor(acting.PrimaryRole(roles)), nil)
}

// PostLogout ends any running impersonation before the session is destroyed
// so the actor's roles are never left elevated.
func (h *LoginHandler) PostLogout(ctx *fiber.Ctx) error {
	if ac := acting.From(ctx); ac != nil && ac.IsImpersonating() {
		if _, err := h.impersonateService.Stop(ctx.Context(), ac); err != nil {
			return err
		}
		recordImpersonation(ctx, ac, ac.Impersonation.Target, false)
	}
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return respond(ctx, MsgLoggedOut, "/login", nil)
}

func NewLoginHandler(userService UserService, impersonateService ImpersonateService) *LoginHandler {
	return &LoginHandler{
		userService:        userService,
		impersonateService: impersonateService,
	}
}
