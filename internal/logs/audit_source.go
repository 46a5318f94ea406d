package logs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onsell/backoffice/model"
	"gorm.io/datatypes"
)

// AuditSource projects audit rows into entries. Audit entries are always of
// type audit and level info.
type AuditSource struct {
	repo AuditRepository
}

func NewAuditSource(repo AuditRepository) *AuditSource {
	return &AuditSource{repo: repo}
}

func (s *AuditSource) Fetch(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Type != "" && filter.Type != TypeAudit {
		return nil, nil
	}
	if filter.Level != "" && filter.Level != LevelInfo {
		return nil, nil
	}
	audits, err := s.repo.Find(ctx, AuditQuery{
		Search:   filter.Search,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: audits: %v", ErrSourceRead, err)
	}
	entries := make([]Entry, 0, len(audits))
	for _, a := range audits {
		entries = append(entries, auditEntry(a))
	}
	return entries, nil
}

type auditDetails struct {
	OldValues json.RawMessage `json:"old_values"`
	NewValues json.RawMessage `json:"new_values"`
	URL       string          `json:"url"`
	UserAgent string          `json:"user_agent"`
	Tags      json.RawMessage `json:"tags"`
}

func rawJSON(v datatypes.JSON) json.RawMessage {
	if len(v) == 0 || !json.Valid(v) {
		return json.RawMessage("null")
	}
	return json.RawMessage(v)
}

func auditEntry(a *model.Audit) Entry {
	user := "System"
	if a.User != nil {
		user = fmt.Sprintf("%s (%s)", a.User.Name, a.User.Email)
	}
	ip := a.IPAddress
	if ip == "" {
		ip = noValue
	}
	details, _ := json.Marshal(auditDetails{
		OldValues: rawJSON(a.OldValues),
		NewValues: rawJSON(a.NewValues),
		URL:       a.URL,
		UserAgent: a.UserAgent,
		Tags:      rawJSON(a.Tags),
	})
	return Entry{
		Date:    a.CreatedAt,
		Message: fmt.Sprintf("Action '%s' on %s #%d", a.Event, a.AuditableType, a.AuditableID),
		User:    user,
		IP:      ip,
		Type:    TypeAudit,
		Level:   LevelInfo,
		Details: string(details),
	}
}
