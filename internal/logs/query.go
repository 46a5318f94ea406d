package logs

import (
	"fmt"
	"strings"
	"time"

	"github.com/onsell/backoffice/params"
	"github.com/spf13/cast"
)

// Params are the raw query string values of a listing or export request.
type Params struct {
	Type     string
	Level    string
	DateFrom string
	DateTo   string
	Search   string
	Page     string
	PerPage  string
}

type Query struct {
	Filter  Filter
	Page    int
	PerPage int
}

// ParseQuery validates p. Every invalid field is reported in one
// *ValidationError.
func ParseQuery(p Params) (Query, error) {
	verr := &ValidationError{}
	q := Query{Page: 1, PerPage: params.LogsDefaultPerPage}

	if p.Type != "" {
		if t := Type(p.Type); isValidType(t) {
			q.Filter.Type = t
		} else {
			verr.add("type", "must be one of "+joinValues(Types))
		}
	}
	if p.Level != "" {
		if l := Level(p.Level); isValidLevel(l) {
			q.Filter.Level = l
		} else {
			verr.add("level", "must be one of "+joinValues(Levels))
		}
	}
	q.Filter.DateFrom = parseDate(verr, "dateFrom", p.DateFrom)
	q.Filter.DateTo = parseDate(verr, "dateTo", p.DateTo)
	if !q.Filter.DateFrom.IsZero() && !q.Filter.DateTo.IsZero() && q.Filter.DateTo.Before(q.Filter.DateFrom) {
		verr.add("dateTo", "must be on or after dateFrom")
	}
	q.Filter.Search = strings.TrimSpace(p.Search)

	if p.Page != "" {
		page, err := cast.ToIntE(p.Page)
		if err != nil || page < 1 {
			verr.add("page", "must be an integer of at least 1")
		} else {
			q.Page = page
		}
	}
	if p.PerPage != "" {
		perPage, err := cast.ToIntE(p.PerPage)
		if err != nil || perPage < params.LogsMinPerPage || perPage > params.LogsMaxPerPage {
			verr.add("per_page", fmt.Sprintf("must be an integer between %d and %d", params.LogsMinPerPage, params.LogsMaxPerPage))
		} else {
			q.PerPage = perPage
		}
	}

	if len(verr.Fields) > 0 {
		return Query{}, verr
	}
	return q, nil
}

func parseDate(verr *ValidationError, field, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(params.LogsDateLayout, value)
	if err != nil {
		verr.add(field, "must be a date formatted as YYYY-MM-DD")
		return time.Time{}
	}
	return t
}

func ValidateRetentionDays(days int) error {
	if days < params.LogsMinRetentionDays || days > params.LogsMaxRetentionDays {
		return &ValidationError{Fields: map[string]string{
			"days": fmt.Sprintf("must be an integer between %d and %d", params.LogsMinRetentionDays, params.LogsMaxRetentionDays),
		}}
	}
	return nil
}

func joinValues[T ~string](values []T) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
