// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization represents a tenant.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
