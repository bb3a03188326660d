package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert validates and persists the alert with its thresholds.
	Insert(ctx context.Context, db *gorm.DB, alert *Alert) error
	// ListByWallet returns the wallet's alerts of the given type with their
	// thresholds loaded.
	ListByWallet(ctx context.Context, db *gorm.DB, walletID snowflake.ID, alertType AlertType) ([]*Alert, error)
	// UpdateEvaluationState advances PreviousValue after an evaluation.
	UpdateEvaluationState(ctx context.Context, db *gorm.DB, alertID snowflake.ID, value decimal.Decimal, processedAt time.Time) error
	InsertTriggeredAlert(ctx context.Context, db *gorm.DB, triggered *TriggeredAlert) error
	ListTriggeredByAlert(ctx context.Context, db *gorm.DB, alertID snowflake.ID) ([]TriggeredAlert, error)
}
