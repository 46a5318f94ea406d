package logs

import (
	"context"
	"strings"
	"time"

	"github.com/onsell/backoffice/model"
	"gorm.io/gorm"
)

// AuditQuery is the part of a Filter that is pushed down to the database.
type AuditQuery struct {
	Search   string
	DateFrom time.Time
	DateTo   time.Time
}

type AuditRepository interface {
	Find(ctx context.Context, q AuditQuery) ([]*model.Audit, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *auditRepository) textColumn(column string) string {
	if r.db.Dialector.Name() == "postgres" {
		return "CAST(" + column + " AS TEXT)"
	}
	return "CAST(" + column + " AS CHAR)"
}

func (r *auditRepository) buildQuery(ctx context.Context, q AuditQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&model.Audit{})
	if q.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		tx = tx.Where(r.db.
			Where("LOWER(event) LIKE ?", like).
			Or("LOWER(auditable_type) LIKE ?", like).
			Or(r.textColumn("user_id")+" LIKE ?", like).
			Or("LOWER(url) LIKE ?", like).
			Or("ip_address LIKE ?", like).
			Or("LOWER(user_agent) LIKE ?", like))
	}
	if !q.DateFrom.IsZero() {
		from := time.Date(q.DateFrom.Year(), q.DateFrom.Month(), q.DateFrom.Day(), 0, 0, 0, 0, time.Local)
		tx = tx.Where("created_at >= ?", from)
	}
	if !q.DateTo.IsZero() {
		to := time.Date(q.DateTo.Year(), q.DateTo.Month(), q.DateTo.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)
		tx = tx.Where("created_at < ?", to)
	}
	return tx.Order("created_at DESC").Order("id DESC")
}

func (r *auditRepository) Find(ctx context.Context, q AuditQuery) ([]*model.Audit, error) {
	var audits []*model.Audit
	err := r.buildQuery(ctx, q).Preload("User").Find(&audits).Error
	return audits, err
}

func (r *auditRepository) deleteOlderThan(ctx context.Context, cutoff time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.Audit{})
}

func (r *auditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.deleteOlderThan(ctx, cutoff)
	return result.RowsAffected, result.Error
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}
