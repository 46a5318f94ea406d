package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/internal/middlewares"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/render"
	"github.com/onsell/backoffice/internal/users"
	"github.com/onsell/backoffice/model"
	"github.com/onsell/backoffice/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogService struct {
	page       *logs.Page
	err        error
	lastFilter logs.Filter
	lastPage   int
	lastPer    int
	export     string
	clearDays  int
	cleared    *logs.ClearResult
}

func (f *fakeLogService) List(ctx context.Context, filter logs.Filter, page, perPage int) (*logs.Page, error) {
	f.lastFilter, f.lastPage, f.lastPer = filter, page, perPage
	return f.page, f.err
}

func (f *fakeLogService) Export(ctx context.Context, filter logs.Filter, format logs.Format, w io.Writer) error {
	f.lastFilter = filter
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.export)
	return err
}

func (f *fakeLogService) ClearOlderThan(ctx context.Context, days int) (*logs.ClearResult, error) {
	f.clearDays = days
	return f.cleared, f.err
}

type fakeImpersonateService struct {
	imp       *acting.Impersonation
	startErr  error
	stopTo    string
	stopped   bool
	restored  []uint
	tenant    *impersonate.Tenant
	tenantErr error
	targets   *impersonate.Targets
	lastActor *acting.Context
}

func (f *fakeImpersonateService) Start(ctx context.Context, ac *acting.Context, targetType acting.TenantType, targetID uint) (*acting.Impersonation, error) {
	f.lastActor = ac
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.imp, nil
}

func (f *fakeImpersonateService) Stop(ctx context.Context, ac *acting.Context) (string, error) {
	f.stopped = true
	return f.stopTo, nil
}

func (f *fakeImpersonateService) RestorePending(ctx context.Context, actorID uint) (bool, error) {
	f.restored = append(f.restored, actorID)
	return false, nil
}

func (f *fakeImpersonateService) ResolveEffectiveTenant(ctx context.Context, ac *acting.Context, expected acting.TenantType) (*impersonate.Tenant, error) {
	return f.tenant, f.tenantErr
}

func (f *fakeImpersonateService) ListTargets(ctx context.Context, ac *acting.Context) (*impersonate.Targets, error) {
	return f.targets, nil
}

type fakeUserService struct {
	user  *model.User
	roles []string
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if f.user == nil || email != f.user.Email || password != "secret" {
		return nil, users.ErrInvalidCredentials
	}
	return f.user, nil
}

func (f *fakeUserService) GetRoles(ctx context.Context, userID uint) ([]string, error) {
	return f.roles, nil
}

func adminContext() *acting.Context {
	return &acting.Context{ActorID: 1, ActorName: "Root", Roles: []string{model.RoleAdmin}}
}

func newTestApp(t *testing.T, ac *acting.Context, exposeErrors bool, routes func(app *fiber.App)) *fiber.App {
	t.Helper()
	require.NoError(t, render.Initialize(map[string]interface{}{"siteName": "OnSell"}, ""))
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.NewErrorHandler(exposeErrors)})
	app.Use(sessions.New(sessions.Config{Storage: memory.New(), SessionMaxAge: time.Hour}))
	app.Use(func(ctx *fiber.Ctx) error {
		if ac != nil {
			acting.With(ctx, ac)
		}
		return ctx.Next()
	})
	routes(app)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

type apiResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGetLogsData(t *testing.T) {
	svc := &fakeLogService{page: &logs.Page{Data: []logs.Entry{}, Total: 0, PerPage: 20, CurrentPage: 2, LastPage: 1}}
	h := NewLogsHandler(svc, 10)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/admin/logs/data", h.GetLogsData)
	})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/admin/logs/data?type=audit&level=info&page=2&per_page=20&search=+acme+", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.True(t, body.Success)
	var page logs.Page
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, 1, page.LastPage)
	assert.Equal(t, logs.TypeAudit, svc.lastFilter.Type)
	assert.Equal(t, logs.LevelInfo, svc.lastFilter.Level)
	assert.Equal(t, "acme", svc.lastFilter.Search)
	assert.Equal(t, 2, svc.lastPage)
	assert.Equal(t, 20, svc.lastPer)
}

func TestGetLogsData_ValidationError(t *testing.T) {
	h := NewLogsHandler(&fakeLogService{}, 10)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/admin/logs/data", h.GetLogsData)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/data?per_page=5&type=bogus&dateFrom=2024-13-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body := decode(t, resp)
	assert.False(t, body.Success)
	assert.Contains(t, body.Errors, "per_page")
	assert.Contains(t, body.Errors, "type")
	assert.Contains(t, body.Errors, "dateFrom")
}

func TestGetLogsData_DateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	for _, query := range []string{
		"dateFrom=2024-01-01&dateTo=2024-01-31",
		"date_from=2024-01-01&date_to=2024-01-31",
	} {
		svc := &fakeLogService{page: &logs.Page{Data: []logs.Entry{}, LastPage: 1}}
		h := NewLogsHandler(svc, 10)
		app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
			app.Get("/admin/logs/data", h.GetLogsData)
		})

		resp, err := app.Test(jsonRequest(http.MethodGet, "/admin/logs/data?"+query, ""))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, query)
		assert.True(t, svc.lastFilter.DateFrom.Equal(from), query)
		assert.True(t, svc.lastFilter.DateTo.Equal(to), query)
	}
}

func TestLogsHandler_ExportLimiterPerActor(t *testing.T) {
	h := NewLogsHandler(&fakeLogService{}, 1)
	first := h.exportLimiter(1)
	assert.Same(t, first, h.exportLimiter(1))
	assert.NotSame(t, first, h.exportLimiter(2))

	// least recently used actors are forgotten once the cache is full
	for id := uint(2); id <= params.LogsExportLimiterCacheSize+1; id++ {
		h.exportLimiter(id)
	}
	assert.Equal(t, params.LogsExportLimiterCacheSize, h.exportLimiters.Len())
	assert.NotSame(t, first, h.exportLimiter(1))
}

func TestGetLogsData_SourceFailure(t *testing.T) {
	failure := fmt.Errorf("%w: dial tcp 10.0.0.5:3306: connection refused", logs.ErrSourceRead)

	for _, expose := range []bool{false, true} {
		h := NewLogsHandler(&fakeLogService{err: failure}, 10)
		app := newTestApp(t, adminContext(), expose, func(app *fiber.App) {
			app.Get("/admin/logs/data", h.GetLogsData)
		})

		resp, err := app.Test(jsonRequest(http.MethodGet, "/admin/logs/data", ""))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		body := decode(t, resp)
		assert.False(t, body.Success)
		assert.Contains(t, body.Message, "Failed to load logs.")
		assert.Equal(t, expose, strings.Contains(body.Message, "connection refused"))
	}
}

func TestGetLogsExport(t *testing.T) {
	svc := &fakeLogService{export: "Data,Mensagem,Usuario,IP,Tipo,Nivel\n"}
	h := NewLogsHandler(svc, 1)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/admin/logs/export", h.GetLogsExport)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/export?format=csv&level=error", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="logs-`)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `.csv"`)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, svc.export, string(raw))
	assert.Equal(t, logs.LevelError, svc.lastFilter.Level)
}

func TestGetLogsExport_RateLimited(t *testing.T) {
	h := NewLogsHandler(&fakeLogService{export: "[]"}, 1)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/admin/logs/export", h.GetLogsExport)
	})

	var last *http.Response
	for i := 0; i < 4; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/export?format=json", nil))
		require.NoError(t, err)
		last = resp
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last.StatusCode)
	body := decode(t, last)
	assert.Contains(t, body.Message, "Too many exports")
}

func TestGetLogsExport_InvalidFormat(t *testing.T) {
	h := NewLogsHandler(&fakeLogService{}, 10)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/admin/logs/export", h.GetLogsExport)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/logs/export?format=xml", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode(t, resp).Errors, "format")
}

func TestPostLogsClear(t *testing.T) {
	svc := &fakeLogService{cleared: &logs.ClearResult{AuditsDeleted: 1, FilesDeleted: 2}}
	h := NewLogsHandler(svc, 10)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Post("/admin/logs/clear", h.PostLogsClear)
	})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/admin/logs/clear", `{"days":30}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 30, svc.clearDays)

	body := decode(t, resp)
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"db_records_deleted":1,"files_deleted":2}`, string(body.Data))
}

func TestPostLogsClear_InvalidDays(t *testing.T) {
	for _, payload := range []string{`{"days":0}`, `{"days":366}`, `{"days":"soon"}`, `{}`} {
		svc := &fakeLogService{}
		h := NewLogsHandler(svc, 10)
		app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
			app.Post("/admin/logs/clear", h.PostLogsClear)
		})

		resp, err := app.Test(jsonRequest(http.MethodPost, "/admin/logs/clear", payload))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode, payload)
		assert.Contains(t, decode(t, resp).Errors, "days", payload)
		assert.Zero(t, svc.clearDays)
	}
}

func TestPostStartAgency(t *testing.T) {
	svc := &fakeImpersonateService{imp: &acting.Impersonation{
		OriginalUser: acting.OriginalUser{ID: 1, Name: "Root", Role: model.RoleAdmin},
		Target:       acting.Target{ID: 7, Name: "Acme", Type: acting.TenantAgency},
	}}
	h := NewImpersonateHandler(svc)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Post("/impersonate/agency/:id", h.PostStartAgency)
	})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/impersonate/agency/7", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.True(t, body.Success)
	assert.Contains(t, string(body.Data), `"redirect":"/agency/dashboard"`)
	assert.Contains(t, string(body.Data), `"name":"Acme"`)
	assert.Equal(t, uint(1), svc.lastActor.ActorID)

	// browsers are redirected with 303
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/impersonate/agency/7", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/agency/dashboard", resp.Header.Get("Location"))
}

func TestPostStart_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"permission denied", "/impersonate/client/3", impersonate.ErrPermissionDenied, fiber.StatusForbidden},
		{"target not found", "/impersonate/client/3", impersonate.ErrTargetNotFound, fiber.StatusNotFound},
		{"malformed id", "/impersonate/client/abc", nil, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewImpersonateHandler(&fakeImpersonateService{startErr: tt.err})
			app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
				app.Post("/impersonate/client/:id", h.PostStartClient)
			})
			resp, err := app.Test(jsonRequest(http.MethodPost, tt.path, ""))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, decode(t, resp).Success)
		})
	}
}

func TestPostStop(t *testing.T) {
	svc := &fakeImpersonateService{stopTo: "/admin/dashboard"}
	ac := adminContext()
	ac.Impersonation = &acting.Impersonation{Target: acting.Target{ID: 7, Name: "Acme", Type: acting.TenantAgency}}
	h := NewImpersonateHandler(svc)
	app := newTestApp(t, ac, false, func(app *fiber.App) {
		app.Post("/impersonate/stop", h.PostStop)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/impersonate/stop", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/dashboard", resp.Header.Get("Location"))
	assert.True(t, svc.stopped)
}

func TestGetTargets(t *testing.T) {
	svc := &fakeImpersonateService{targets: &impersonate.Targets{
		Clients: []impersonate.TargetInfo{{ID: 3, Name: "Shop", AgencyID: 7}},
	}}
	h := NewImpersonateHandler(svc)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/impersonate/targets", h.GetTargets)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/impersonate/targets", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"clients":[{"id":3,"name":"Shop","agency_id":7}]}`, string(decode(t, resp).Data))
}

func TestTenantDashboard(t *testing.T) {
	svc := &fakeImpersonateService{tenant: &impersonate.Tenant{Type: acting.TenantClient, ID: 3, Name: "Shop", AgencyID: 7}}
	h := NewDashboardHandler(svc)
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/client/dashboard", h.GetClientDashboard)
	})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/client/dashboard", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(decode(t, resp).Data), `"name":"Shop"`)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/client/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Shop")
}

func TestTenantDashboard_NoTenant(t *testing.T) {
	h := NewDashboardHandler(&fakeImpersonateService{tenantErr: impersonate.ErrTenantNotFound})
	app := newTestApp(t, adminContext(), false, func(app *fiber.App) {
		app.Get("/agency/dashboard", h.GetAgencyDashboard)
	})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/agency/dashboard", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostLogin(t *testing.T) {
	userSvc := &fakeUserService{
		user:  &model.User{ID: 42, Name: "Owner", Email: "owner@acme.test"},
		roles: []string{model.RoleAgencyOwner},
	}
	imp := &fakeImpersonateService{}
	h := NewLoginHandler(userSvc, imp)
	app := newTestApp(t, nil, false, func(app *fiber.App) {
		app.Get("/login", h.GetLogin)
		app.Post("/login", h.PostLogin)
	})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/login", `{"email":"owner@acme.test","password":"secret"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.True(t, body.Success)
	assert.Contains(t, string(body.Data), `"redirect":"/agency/dashboard"`)
	assert.Equal(t, []uint{42}, imp.restored)
	assert.NotEmpty(t, resp.Header.Get("Set-Cookie"))

	resp, err = app.Test(jsonRequest(http.MethodPost, "/login", `{"email":"owner@acme.test","password":"nope"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, MsgLoginWrongCredentials, decode(t, resp).Message)
}

func TestGetLogin_RendersForm(t *testing.T) {
	h := NewLoginHandler(&fakeUserService{}, &fakeImpersonateService{})
	app := newTestApp(t, nil, false, func(app *fiber.App) {
		app.Get("/login", h.GetLogin)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), `name="_csrf"`)
	assert.Contains(t, string(page), "OnSell")
}

func TestPostLogout_StopsImpersonation(t *testing.T) {
	imp := &fakeImpersonateService{stopTo: "/admin/dashboard"}
	ac := adminContext()
	ac.Impersonation = &acting.Impersonation{Target: acting.Target{ID: 3, Name: "Shop", Type: acting.TenantClient}}
	h := NewLoginHandler(&fakeUserService{}, imp)
	app := newTestApp(t, ac, false, func(app *fiber.App) {
		app.Post("/logout", h.PostLogout)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.True(t, imp.stopped)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "a second", formatDuration(300*time.Millisecond))
	assert.Equal(t, "42 seconds", formatDuration(42*time.Second))
	assert.Equal(t, "2 minutes", formatDuration(90*time.Second))
	assert.Equal(t, "1 hour 5 minutes", formatDuration(65*time.Minute))
}
