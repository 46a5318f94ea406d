package middlewares

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/internal/render"
)

const (
	msgValidationFailed = "The given data was invalid."
	msgInternalError    = "Something went wrong. Please try again later."
	msgLogsReadFailed   = "Failed to load logs."
)

// apiPaths always answer with JSON regardless of the Accept header.
var apiPaths = []string{"/admin/logs/", "/impersonate/targets"}

func isAPIRequest(ctx *fiber.Ctx) bool {
	for _, p := range apiPaths {
		if strings.HasPrefix(ctx.Path(), p) {
			return true
		}
	}
	return render.WantsJSON(ctx)
}

type httpError struct {
	status  int
	message string
	fields  map[string]string
}

func classifyError(err error, exposeErrors bool) httpError {
	var (
		verr     *logs.ValidationError
		fiberErr *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return httpError{fiber.StatusUnprocessableEntity, msgValidationFailed, verr.Fields}
	case errors.Is(err, logs.ErrInvalidFormat):
		return httpError{fiber.StatusUnprocessableEntity, msgValidationFailed, map[string]string{"format": err.Error()}}
	case errors.Is(err, impersonate.ErrInvalidTargetType):
		return httpError{fiber.StatusUnprocessableEntity, msgValidationFailed, map[string]string{"type": err.Error()}}
	case errors.Is(err, impersonate.ErrPermissionDenied):
		return httpError{status: fiber.StatusForbidden, message: "You are not allowed to impersonate this account."}
	case errors.Is(err, impersonate.ErrTargetNotFound), errors.Is(err, impersonate.ErrTenantNotFound):
		return httpError{status: fiber.StatusNotFound, message: err.Error()}
	case errors.As(err, &fiberErr):
		return httpError{status: fiberErr.Code, message: fiberErr.Message}
	}

	message := msgInternalError
	if errors.Is(err, logs.ErrSourceRead) {
		message = msgLogsReadFailed
	}
	if exposeErrors {
		message += " " + err.Error()
	}
	return httpError{status: fiber.StatusInternalServerError, message: message}
}

// NewErrorHandler returns the application error handler. Unhandled errors
// carry their raw message only when exposeErrors is set.
func NewErrorHandler(exposeErrors bool) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		herr := classifyError(err, exposeErrors)
		if herr.status >= fiber.StatusInternalServerError {
			attrs := []any{"path", ctx.Path(), "code", herr.status, "ip", ctx.IP(), "error", err}
			if rid, ok := ctx.Locals("requestid").(string); ok {
				attrs = append(attrs, "request_id", rid)
			}
			if ac := acting.From(ctx); ac != nil {
				attrs = append(attrs, "user_id", ac.ActorID)
			}
			slog.Error("Unhandled error", attrs...)
		}

		if isAPIRequest(ctx) {
			return render.RenderJSON(ctx, herr.status, render.APIResponse{
				Success: false,
				Message: herr.message,
				Errors:  herr.fields,
			})
		}

		switch herr.status {
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			return render.RenderBadRequestError(ctx)
		case fiber.StatusForbidden:
			return render.RenderForbiddenError(ctx)
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			return render.RenderNotFoundError(ctx)
		case fiber.StatusInternalServerError:
			return render.RenderInternalServerError(ctx)
		default:
			return render.RenderErrorPage(ctx, herr.status, herr.message)
		}
	}
}
