package model

import (
	"time"

	"gorm.io/gorm"
)

type Agency struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   uint   `gorm:"index;not null"`
	Active    bool   `gorm:"default:true;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (a *Agency) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}

type Client struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:128;not null"`
	AgencyID  uint   `gorm:"index;not null"`
	Active    bool   `gorm:"default:true;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}
