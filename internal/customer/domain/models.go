// Package domain contains persistence models for the customer service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is the billing counterparty that owns wallets.
type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text" json:"email"`
	Currency  string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
