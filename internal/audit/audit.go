package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/onsell/backoffice/model"
	"gorm.io/datatypes"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeLoginSuccess          = "login_success"
	EventTypeLoginFailure          = "login_failure"
	EventTypeImpersonationStarted  = "impersonation_started"
	EventTypeImpersonationStopped  = "impersonation_stopped"
	EventTypeLogsCleared           = "logs_cleared"
	AuditableTypeUser              = "User"
	AuditableTypeAgency            = "Agency"
	AuditableTypeClient            = "Client"
	AuditableTypeLogs              = "Logs"
)

type RequestInfo struct {
	URL       string
	IP        string
	UserAgent string
}

type LoginRecord struct {
	RequestInfo
	UserID  uint
	Email   string
	Success bool
	Reason  string
}

type ImpersonationRecord struct {
	RequestInfo
	ActorID    uint
	TargetType string
	TargetID   uint
	TargetName string
	Started    bool
}

type LogsClearedRecord struct {
	RequestInfo
	ActorID       uint
	Days          int
	AuditsDeleted int64
	FilesDeleted  int
}

func jsonValue(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func userRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func record(ctx context.Context, event *model.Audit, info RequestInfo) error {
	if auditRepo == nil {
		return nil
	}
	event.URL = info.URL
	event.IPAddress = info.IP
	event.UserAgent = info.UserAgent
	return auditRepo.RecordEvent(ctx, event)
}

func RecordLogin(ctx context.Context, rec LoginRecord) error {
	eventType := EventTypeLoginFailure
	if rec.Success {
		eventType = EventTypeLoginSuccess
	}
	return record(ctx, &model.Audit{
		Event:         eventType,
		AuditableType: AuditableTypeUser,
		AuditableID:   uint64(rec.UserID),
		UserID:        userRef(rec.UserID),
		NewValues:     jsonValue(map[string]string{"email": rec.Email, "reason": rec.Reason}),
		Tags:          jsonValue([]string{"auth"}),
	}, rec.RequestInfo)
}

func RecordImpersonation(ctx context.Context, rec ImpersonationRecord) error {
	eventType := EventTypeImpersonationStopped
	if rec.Started {
		eventType = EventTypeImpersonationStarted
	}
	auditableType := AuditableTypeClient
	if rec.TargetType == "agency" {
		auditableType = AuditableTypeAgency
	}
	return record(ctx, &model.Audit{
		Event:         eventType,
		AuditableType: auditableType,
		AuditableID:   uint64(rec.TargetID),
		UserID:        userRef(rec.ActorID),
		NewValues:     jsonValue(map[string]any{"target_type": rec.TargetType, "target_id": rec.TargetID, "target_name": rec.TargetName}),
		Tags:          jsonValue([]string{"impersonation"}),
	}, rec.RequestInfo)
}

func RecordLogsCleared(ctx context.Context, rec LogsClearedRecord) error {
	return record(ctx, &model.Audit{
		Event:         EventTypeLogsCleared,
		AuditableType: AuditableTypeLogs,
		UserID:        userRef(rec.ActorID),
		NewValues: jsonValue(map[string]any{
			"days":           rec.Days,
			"audits_deleted": rec.AuditsDeleted,
			"files_deleted":  rec.FilesDeleted,
		}),
		Tags: jsonValue([]string{"retention"}),
	}, rec.RequestInfo)
}
