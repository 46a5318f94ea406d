package render

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func RenderJSON(ctx *fiber.Ctx, status int, resp APIResponse) error {
	return ctx.Status(status).JSON(resp)
}

// WantsJSON reports whether the client asked for a JSON response rather than
// a page.
func WantsJSON(ctx *fiber.Ctx) bool {
	if strings.Contains(ctx.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
		return true
	}
	if ctx.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}
