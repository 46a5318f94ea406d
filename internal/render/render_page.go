package render

import (
	"github.com/gofiber/fiber/v2"
)

type ImpersonationBanner struct {
	OriginalName string
	TargetType   string
	TargetName   string
}

type LogsPageData struct {
	CSRFToken     string
	Types         []string
	Levels        []string
	Formats       []string
	PerPage       int
	Impersonation *ImpersonationBanner
}

type LoginPageData struct {
	Email     string
	CSRFToken string
	ErrorMsg  string
}

type DashboardPageData struct {
	Title         string
	TenantType    string
	TenantName    string
	CSRFToken     string
	Impersonation *ImpersonationBanner
}

func sendHTML(ctx *fiber.Ctx, status int, templateName string, vars fiber.Map) error {
	body, err := RenderHTML(templateName, vars)
	if err != nil {
		return err
	}
	ctx.Set("Content-Type", "text/html; charset=utf-8")
	return ctx.Status(status).SendString(body)
}

func RenderErrorPage(ctx *fiber.Ctx, status int, message string) error {
	return sendHTML(ctx, status, "error", fiber.Map{
		"status":  status,
		"message": message,
	})
}

func RenderInternalServerError(ctx *fiber.Ctx) error {
	return RenderErrorPage(ctx, fiber.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func RenderNotFoundError(ctx *fiber.Ctx) error {
	return RenderErrorPage(ctx, fiber.StatusNotFound, "The page you are looking for does not exist.")
}

func RenderForbiddenError(ctx *fiber.Ctx) error {
	return RenderErrorPage(ctx, fiber.StatusForbidden, "You do not have permission to access this page.")
}

func RenderBadRequestError(ctx *fiber.Ctx) error {
	return RenderErrorPage(ctx, fiber.StatusBadRequest, "Invalid request. Please try again.")
}

func RenderLoginPage(ctx *fiber.Ctx, data LoginPageData) error {
	statusCode := fiber.StatusOK
	if data.ErrorMsg != "" {
		statusCode = fiber.StatusUnauthorized
	}
	return sendHTML(ctx, statusCode, "login", fiber.Map{
		"email":     data.Email,
		"csrfToken": data.CSRFToken,
		"errorMsg":  data.ErrorMsg,
	})
}

func RenderLogsPage(ctx *fiber.Ctx, data LogsPageData) error {
	return sendHTML(ctx, fiber.StatusOK, "logs", fiber.Map{
		"csrfToken":     data.CSRFToken,
		"types":         data.Types,
		"levels":        data.Levels,
		"formats":       data.Formats,
		"perPage":       data.PerPage,
		"impersonation": data.Impersonation,
	})
}

func RenderDashboardPage(ctx *fiber.Ctx, data DashboardPageData) error {
	return sendHTML(ctx, fiber.StatusOK, "dashboard", fiber.Map{
		"title":         data.Title,
		"tenantType":    data.TenantType,
		"tenantName":    data.TenantName,
		"csrfToken":     data.CSRFToken,
		"impersonation": data.Impersonation,
	})
}
