package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/alert/domain"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) domain.Repository {
	return &repo{genID: genID}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, alert *domain.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	if alert.ID == 0 {
		alert.ID = r.genID.Generate()
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now
	for i := range alert.Thresholds {
		if alert.Thresholds[i].ID == 0 {
			alert.Thresholds[i].ID = r.genID.Generate()
		}
		alert.Thresholds[i].AlertID = alert.ID
		if alert.Thresholds[i].CreatedAt.IsZero() {
			alert.Thresholds[i].CreatedAt = now
		}
	}
	return db.WithContext(ctx).Create(alert).Error
}

func (r *repo) ListByWallet(ctx context.Context, db *gorm.DB, walletID snowflake.ID, alertType domain.AlertType) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Preload("Thresholds", func(db *gorm.DB) *gorm.DB {
			return db.Order("value asc")
		}).
		Where("wallet_id = ?", walletID).
		Where("alert_type = ?", string(alertType)).
		Order("id asc").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repo) UpdateEvaluationState(ctx context.Context, db *gorm.DB, alertID snowflake.ID, value decimal.Decimal, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE alerts SET previous_value = ?, last_processed_at = ?, updated_at = ? WHERE id = ?`,
		value,
		processedAt,
		processedAt,
		alertID,
	).Error
}

func (r *repo) InsertTriggeredAlert(ctx context.Context, db *gorm.DB, triggered *domain.TriggeredAlert) error {
	if triggered.ID == 0 {
		triggered.ID = r.genID.Generate()
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO triggered_alerts (id, org_id, alert_id, previous_value, current_value, crossed_thresholds, triggered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		triggered.ID,
		triggered.OrgID,
		triggered.AlertID,
		triggered.PreviousValue,
		triggered.CurrentValue,
		string(triggered.CrossedThresholds),
		triggered.TriggeredAt,
	).Error
}

func (r *repo) ListTriggeredByAlert(ctx context.Context, db *gorm.DB, alertID snowflake.ID) ([]domain.TriggeredAlert, error) {
	var triggered []domain.TriggeredAlert
	err := db.WithContext(ctx).
		Model(&domain.TriggeredAlert{}).
		Where("alert_id = ?", alertID).
		Order("triggered_at asc, id asc").
		Find(&triggered).Error
	if err != nil {
		return nil, err
	}
	return triggered, nil
}
