package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditEventCreated  = "created"
	AuditEventUpdated  = "updated"
	AuditEventDeleted  = "deleted"
	AuditEventRestored = "restored"
)

// Audit is one tracked model mutation. Rows are append-only; only the
// retention sweep deletes them.
type Audit struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	Event         string         `gorm:"size:32;not null;index"`
	AuditableType string         `gorm:"size:128;not null;index:idx_auditable"`
	AuditableID   uint64         `gorm:"not null;index:idx_auditable"`
	UserID        *uint          `gorm:"index"`
	User          *User          `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
	OldValues     datatypes.JSON // column snapshot before the change
	NewValues     datatypes.JSON // column snapshot after the change
	URL           string         `gorm:"size:1024"`
	IPAddress     string         `gorm:"size:45"` // IPv4/IPv6
	UserAgent     string         `gorm:"size:1024"`
	Tags          datatypes.JSON // list of strings
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

func (Audit) TableName() string {
	return "audits"
}
