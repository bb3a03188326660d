// Package domain contains the balance alert models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AlertType is the wallet metric an alert watches.
type AlertType string

const (
	AlertTypeBalanceAmount         AlertType = "balance_amount"
	AlertTypeCreditsBalance        AlertType = "credits_balance"
	AlertTypeOngoingBalance        AlertType = "ongoing_balance"
	AlertTypeCreditsOngoingBalance AlertType = "credits_ongoing_balance"

	// AlertTypeUsageAmount watches accumulated usage on a subscription.
	AlertTypeUsageAmount AlertType = "usage_amount"
)

// Direction is the direction of travel a threshold is armed against.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
)

// DirectionFor derives the travel direction from the watched metric. Prepaid
// balances drain, usage accumulates.
func DirectionFor(alertType AlertType) Direction {
	switch alertType {
	case AlertTypeUsageAmount:
		return DirectionIncreasing
	default:
		return DirectionDecreasing
	}
}

// WalletAlertType reports whether the type is valid on a wallet scope.
func WalletAlertType(alertType AlertType) bool {
	switch alertType {
	case AlertTypeBalanceAmount, AlertTypeCreditsBalance,
		AlertTypeOngoingBalance, AlertTypeCreditsOngoingBalance:
		return true
	default:
		return false
	}
}

// Alert watches one wallet (or subscription) metric against an ordered set of
// thresholds. PreviousValue is the only mutable evaluation state and advances
// to the current value after every evaluation.
type Alert struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID        `gorm:"not null;index" json:"org_id"`
	WalletID        snowflake.ID        `gorm:"index" json:"wallet_id"`
	SubscriptionID  snowflake.ID        `gorm:"index" json:"subscription_id"`
	AlertType       AlertType           `gorm:"type:text;not null" json:"alert_type"`
	Code            string              `gorm:"type:text;not null" json:"code"`
	Name            string              `gorm:"type:text;not null" json:"name"`
	PreviousValue   decimal.NullDecimal `gorm:"type:numeric" json:"previous_value"`
	LastProcessedAt *time.Time          `json:"last_processed_at"`
	Thresholds      []AlertThreshold    `gorm:"foreignKey:AlertID" json:"thresholds"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Alert) TableName() string { return "alerts" }

// Direction is the alert's derived direction of travel.
func (a *Alert) Direction() Direction { return DirectionFor(a.AlertType) }

// AlertThreshold is one configured trigger value. A recurring threshold's
// value is a repeating step size; a one-time threshold fires at most once.
type AlertThreshold struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	AlertID   snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_alert_thresholds_value,priority:1" json:"alert_id"`
	Code      string          `gorm:"type:text;not null" json:"code"`
	Value     decimal.Decimal `gorm:"type:numeric;not null;uniqueIndex:ux_alert_thresholds_value,priority:2" json:"value"`
	Recurring bool            `gorm:"not null;default:false" json:"recurring"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AlertThreshold) TableName() string { return "alert_thresholds" }

// CrossedThreshold is the snapshot of a threshold at trigger time. Recurring
// thresholds snapshot the crossed grid point, not the configured step.
type CrossedThreshold struct {
	Code      string          `json:"code"`
	Value     decimal.Decimal `json:"value"`
	Recurring bool            `json:"recurring"`
}

// TriggeredAlert is the immutable record of one evaluation that crossed at
// least one threshold.
type TriggeredAlert struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID    `gorm:"not null;index" json:"org_id"`
	AlertID           snowflake.ID    `gorm:"not null;index" json:"alert_id"`
	PreviousValue     decimal.Decimal `gorm:"type:numeric;not null" json:"previous_value"`
	CurrentValue      decimal.Decimal `gorm:"type:numeric;not null" json:"current_value"`
	CrossedThresholds datatypes.JSON  `gorm:"type:text;not null" json:"crossed_thresholds"`
	TriggeredAt       time.Time       `gorm:"not null" json:"triggered_at"`
}

// TableName sets the database table name.
func (TriggeredAlert) TableName() string { return "triggered_alerts" }
