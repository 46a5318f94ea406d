package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/users"
	"github.com/onsell/backoffice/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &logs.ValidationError{Fields: map[string]string{"page": "bad"}}, fiber.StatusUnprocessableEntity},
		{"format", logs.ErrInvalidFormat, fiber.StatusUnprocessableEntity},
		{"permission", impersonate.ErrPermissionDenied, fiber.StatusForbidden},
		{"target", impersonate.ErrTargetNotFound, fiber.StatusNotFound},
		{"tenant", impersonate.ErrTenantNotFound, fiber.StatusNotFound},
		{"fiber", fiber.ErrTooManyRequests, fiber.StatusTooManyRequests},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, classifyError(tt.err, false).status)
		})
	}

	herr := classifyError(errors.New("secret dsn"), false)
	assert.NotContains(t, herr.message, "secret dsn")
	herr = classifyError(errors.New("secret dsn"), true)
	assert.Contains(t, herr.message, "secret dsn")
}

type fakeLoader struct {
	user  *model.User
	roles []string
}

func (f *fakeLoader) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, users.ErrUserNotFound
	}
	return f.user, nil
}

func (f *fakeLoader) GetRoles(ctx context.Context, userID uint) ([]string, error) {
	return f.roles, nil
}

// newApp logs every request in as userID when it is non-zero.
func newApp(userID uint, loader ActorLoader, imp acting.Impersonation) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(false)})
	app.Use(sessions.New(sessions.Config{Storage: memory.New(), SessionMaxAge: time.Hour}))
	app.Use(func(ctx *fiber.Ctx) error {
		if userID != 0 {
			sessions.Get(ctx).Save(sessions.SessionData{UserID: userID, Impersonation: imp})
		}
		return ctx.Next()
	})
	app.Use(LoadActingContext(loader))
	return app
}

func TestLoadActingContext(t *testing.T) {
	agencyID := uint(7)
	loader := &fakeLoader{
		user:  &model.User{ID: 5, Name: "Owner", Email: "owner@acme.test", AgencyID: &agencyID},
		roles: []string{model.RoleAgencyOwner, model.RoleClientUser},
	}
	imp := acting.Impersonation{Target: acting.Target{ID: 3, Name: "Shop", Type: acting.TenantClient}}

	var got *acting.Context
	app := newApp(5, loader, imp)
	app.Get("/", func(ctx *fiber.Ctx) error {
		got = acting.From(ctx)
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.NotNil(t, got)
	assert.Equal(t, uint(5), got.ActorID)
	assert.Equal(t, &agencyID, got.AgencyID)
	assert.True(t, got.IsImpersonating())
	assert.Equal(t, "Shop", got.Impersonation.Target.Name)
	assert.Equal(t, model.RoleAgencyOwner, got.PrimaryRole())
}

func TestLoadActingContext_DisabledUserIsAnonymous(t *testing.T) {
	loader := &fakeLoader{user: &model.User{ID: 5, Disabled: true}}

	var got *acting.Context
	app := newApp(5, loader, acting.Impersonation{})
	app.Get("/", func(ctx *fiber.Ctx) error {
		got = acting.From(ctx)
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequireLogin(t *testing.T) {
	app := newApp(0, &fakeLoader{}, acting.Impersonation{})
	app.Get("/admin/logs", RequireLogin(), func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusOK) })
	app.Get("/admin/logs/data", RequireLogin(), func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/data", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAnyRole(t *testing.T) {
	loader := &fakeLoader{user: &model.User{ID: 5}, roles: []string{model.RoleClientUser}}
	app := newApp(5, loader, acting.Impersonation{})
	app.Get("/admin/logs/data", RequireLogin(), RequireAnyRole(model.RoleAdmin), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})
	app.Get("/client/dashboard", RequireLogin(), RequireAnyRole(model.RoleAdmin, model.RoleClientUser), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/data", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/client/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
