package web

import (
	"context"
	"io"

	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/model"
)

type UserService interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetRoles(ctx context.Context, userID uint) ([]string, error)
}

type ImpersonateService interface {
	Start(ctx context.Context, ac *acting.Context, targetType acting.TenantType, targetID uint) (*acting.Impersonation, error)
	Stop(ctx context.Context, ac *acting.Context) (string, error)
	RestorePending(ctx context.Context, actorID uint) (bool, error)
	ResolveEffectiveTenant(ctx context.Context, ac *acting.Context, expected acting.TenantType) (*impersonate.Tenant, error)
	ListTargets(ctx context.Context, ac *acting.Context) (*impersonate.Targets, error)
}

type LogService interface {
	List(ctx context.Context, filter logs.Filter, page, perPage int) (*logs.Page, error)
	Export(ctx context.Context, filter logs.Filter, format logs.Format, w io.Writer) error
	ClearOlderThan(ctx context.Context, days int) (*logs.ClearResult, error)
}
