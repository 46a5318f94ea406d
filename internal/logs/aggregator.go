package logs

import (
	"context"
	"slices"
	"time"

	"github.com/onsell/backoffice/internal/metrics"
	"github.com/onsell/backoffice/params"
	"golang.org/x/sync/errgroup"
)

type Source interface {
	Fetch(ctx context.Context, filter Filter) ([]Entry, error)
}

// Page is one page of merged entries, newest first.
type Page struct {
	Data        []Entry `json:"data"`
	Total       int     `json:"total"`
	PerPage     int     `json:"per_page"`
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
}

type ClearResult struct {
	AuditsDeleted int64 `json:"db_records_deleted"`
	FilesDeleted  int   `json:"files_deleted"`
}

// Aggregator merges the audit table and the log directory into one listing.
type Aggregator struct {
	audits AuditRepository
	files  *FileSource
	// sources are merged in order; ties on date keep this order.
	sources []Source
	now     func() time.Time
}

func NewAggregator(audits AuditRepository, files *FileSource) *Aggregator {
	return &Aggregator{
		audits:  audits,
		files:   files,
		sources: []Source{NewAuditSource(audits), files},
		now:     time.Now,
	}
}

// Collect fetches every source concurrently and returns all matching entries
// sorted by date, newest first.
func (a *Aggregator) Collect(ctx context.Context, filter Filter) ([]Entry, error) {
	start := time.Now()
	results := make([][]Entry, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			entries, err := src.Fetch(gctx, filter)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.LogQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	merged := slices.Concat(results...)
	slices.SortStableFunc(merged, func(x, y Entry) int {
		return y.Date.Compare(x.Date)
	})
	metrics.LogQueries.WithLabelValues("ok").Inc()
	metrics.LogQueryDuration.Observe(time.Since(start).Seconds())
	return merged, nil
}

func (a *Aggregator) List(ctx context.Context, filter Filter, page, perPage int) (*Page, error) {
	entries, err := a.Collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Paginate(entries, page, perPage), nil
}

// Paginate slices entries into 1-based pages. A page past the end is empty.
func Paginate(entries []Entry, page, perPage int) *Page {
	if perPage <= 0 {
		perPage = params.LogsDefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	total := len(entries)
	lastPage := max((total+perPage-1)/perPage, 1)
	data := []Entry{}
	if offset := (page - 1) * perPage; offset < total {
		data = entries[offset:min(offset+perPage, total)]
	}
	return &Page{
		Data:        data,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}
}

// ClearOlderThan deletes audit rows and log files older than days. Files whose
// name contains today's date are kept.
func (a *Aggregator) ClearOlderThan(ctx context.Context, days int) (*ClearResult, error) {
	if err := ValidateRetentionDays(days); err != nil {
		return nil, err
	}
	now := a.now()
	cutoff := now.AddDate(0, 0, -days)

	deleted, err := a.audits.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	files, err := a.files.DeleteOlderThan(cutoff, now.Format(params.LogsDateLayout))
	if err != nil {
		return nil, err
	}
	metrics.LogClears.Inc()
	return &ClearResult{AuditsDeleted: deleted, FilesDeleted: files}, nil
}
