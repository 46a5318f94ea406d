package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin       = "admin"
	RoleAgencyOwner = "agency.owner"
	RoleClientUser  = "client.user"
)

// User stores back-office account information. AgencyID and ClientID link the
// user to the tenant it belongs to, if any.
type User struct {
	ID        uint       `gorm:"primarykey"`
	Name      string     `gorm:"size:128;not null"`
	Email     string     `gorm:"uniqueIndex;size:256;not null"`
	Password  string     `gorm:"size:64;not null"`
	AgencyID  *uint      `gorm:"index"`
	ClientID  *uint      `gorm:"index"`
	Disabled  bool       `gorm:"default:false;not null"`
	Roles     []UserRole `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// UserRole is a single role grant.
type UserRole struct {
	ID        uint   `gorm:"primarykey;autoIncrement"`
	UserID    uint   `gorm:"not null;index:idx_user_role,unique"`
	Role      string `gorm:"size:32;not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}
