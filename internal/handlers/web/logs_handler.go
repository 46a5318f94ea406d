package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/audit"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/internal/render"
	"github.com/onsell/backoffice/params"
	"github.com/spf13/cast"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"
)

// LogsHandler serves the admin log viewer.
type LogsHandler struct {
	logService     LogService
	exportLimit    rate.Limit
	exportBurst    int
	limiterMu      sync.Mutex
	exportLimiters *lru.Cache[uint, *rate.Limiter]
}

func queryParams(ctx *fiber.Ctx) logs.Params {
	return logs.Params{
		Type:     ctx.Query("type"),
		Level:    ctx.Query("level"),
		DateFrom: ctx.Query("dateFrom", ctx.Query("date_from")),
		DateTo:   ctx.Query("dateTo", ctx.Query("date_to")),
		Search:   ctx.Query("search"),
		Page:     ctx.Query("page"),
		PerPage:  ctx.Query("per_page"),
	}
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func (h *LogsHandler) GetLogs(ctx *fiber.Ctx) error {
	return render.RenderLogsPage(ctx, render.LogsPageData{
		CSRFToken:     csrfToken(ctx),
		Types:         enumStrings(logs.Types),
		Levels:        enumStrings(logs.Levels),
		Formats:       enumStrings(logs.Formats),
		PerPage:       params.LogsDefaultPerPage,
		Impersonation: bannerFor(acting.From(ctx)),
	})
}

func (h *LogsHandler) GetLogsData(ctx *fiber.Ctx) error {
	query, err := logs.ParseQuery(queryParams(ctx))
	if err != nil {
		return err
	}
	page, err := h.logService.List(ctx.Context(), query.Filter, query.Page, query.PerPage)
	if err != nil {
		return err
	}
	return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{Success: true, Data: page})
}

func (h *LogsHandler) exportLimiter(actorID uint) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()
	limiter, ok := h.exportLimiters.Get(actorID)
	if !ok {
		limiter = rate.NewLimiter(h.exportLimit, h.exportBurst)
		h.exportLimiters.Add(actorID, limiter)
	}
	return limiter
}

func (h *LogsHandler) GetLogsExport(ctx *fiber.Ctx) error {
	format, err := logs.ParseFormat(ctx.Query("format"))
	if err != nil {
		return err
	}
	query, err := logs.ParseQuery(queryParams(ctx))
	if err != nil {
		return err
	}

	ac := acting.From(ctx)
	reservation := h.exportLimiter(ac.ActorID).Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return fiber.NewError(fiber.StatusTooManyRequests, fmt.Sprintf(MsgExportRateLimited, formatDuration(delay)))
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := h.logService.Export(ctx.Context(), query.Filter, format, buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("logs-%s.%s", time.Now().Format("2006-01-02-150405"), format.Extension())
	ctx.Set(fiber.HeaderContentType, format.ContentType())
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	slog.Info("Logs exported", "user_id", ac.ActorID, "format", format, "bytes", buf.Len())
	return ctx.Send(buf.Bytes())
}

func parseRetentionDays(ctx *fiber.Ctx) (int, error) {
	var raw interface{} = ctx.FormValue("days")
	if ctx.Is("json") {
		var body struct {
			Days interface{} `json:"days"`
		}
		if err := json.Unmarshal(ctx.Body(), &body); err != nil {
			return 0, fiber.NewError(fiber.StatusBadRequest, MsgInvalidRequest)
		}
		raw = body.Days
	}
	days, err := cast.ToIntE(raw)
	if raw == nil || raw == "" || err != nil {
		return 0, &logs.ValidationError{Fields: map[string]string{"days": MsgDaysRequired}}
	}
	if err := logs.ValidateRetentionDays(days); err != nil {
		return 0, err
	}
	return days, nil
}

func (h *LogsHandler) PostLogsClear(ctx *fiber.Ctx) error {
	days, err := parseRetentionDays(ctx)
	if err != nil {
		return err
	}

	ac := acting.From(ctx)
	result, err := h.logService.ClearOlderThan(ctx.Context(), days)
	if err != nil {
		return err
	}

	if err := audit.RecordLogsCleared(ctx.Context(), audit.LogsClearedRecord{
		RequestInfo:   requestInfo(ctx),
		ActorID:       ac.ActorID,
		Days:          days,
		AuditsDeleted: result.AuditsDeleted,
		FilesDeleted:  result.FilesDeleted,
	}); err != nil {
		slog.Error("Failed to record logs clear", "user_id", ac.ActorID, "error", err)
	}
	slog.Info("Logs cleared", "user_id", ac.ActorID, "days", days, "audits_deleted", result.AuditsDeleted, "files_deleted", result.FilesDeleted)

	return render.RenderJSON(ctx, fiber.StatusOK, render.APIResponse{
		Success: true,
		Message: fmt.Sprintf(MsgLogsCleared, result.AuditsDeleted, result.FilesDeleted, days),
		Data:    result,
	})
}

// NewLogsHandler returns a LogsHandler allowing each actor exportsPerMinute
// exports with a small burst.
func NewLogsHandler(logService LogService, exportsPerMinute int) *LogsHandler {
	// only fails for a non-positive size
	limiters, _ := lru.New[uint, *rate.Limiter](params.LogsExportLimiterCacheSize)
	return &LogsHandler{
		logService:     logService,
		exportLimit:    rate.Limit(float64(exportsPerMinute) / 60),
		exportBurst:    params.LogsExportBurst,
		exportLimiters: limiters,
	}
}
