package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/alert/domain"
	"github.com/smallbiznis/creditcore/internal/clock"
	"github.com/smallbiznis/creditcore/internal/events"
	obsmetrics "github.com/smallbiznis/creditcore/internal/observability/metrics"
	walletdomain "github.com/smallbiznis/creditcore/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EvaluatorParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	WalletRepo walletdomain.Repository
	Outbox     *events.Outbox      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Evaluator runs threshold detection for every alert watching a wallet
// metric, persists triggered alerts and advances evaluation state. The
// database write is the durability boundary; notification delivery happens
// downstream of the outbox and never rolls back alert state.
type Evaluator struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	walletRepo walletdomain.Repository
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewEvaluator(p EvaluatorParams) domain.Evaluator {
	return &Evaluator{
		db:         p.DB,
		log:        p.Log.Named("alert.evaluator"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		walletRepo: p.WalletRepo,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

// Evaluate is invoked once per balance-recalculation pass per metric.
func (e *Evaluator) Evaluate(ctx context.Context, wallet *walletdomain.Wallet, alertType domain.AlertType) ([]domain.TriggeredAlert, error) {
	current, err := currentValueFor(wallet, alertType)
	if err != nil {
		return nil, err
	}

	alerts, err := e.repo.ListByWallet(ctx, e.db, wallet.ID, alertType)
	if err != nil {
		return nil, err
	}

	var triggered []domain.TriggeredAlert
	for _, alert := range alerts {
		record, err := e.evaluateOne(ctx, wallet, alert, alertType, current)
		if err != nil {
			return triggered, err
		}
		if record != nil {
			triggered = append(triggered, *record)
		}
	}
	return triggered, nil
}

func (e *Evaluator) evaluateOne(
	ctx context.Context,
	wallet *walletdomain.Wallet,
	alert *domain.Alert,
	alertType domain.AlertType,
	current decimal.Decimal,
) (*domain.TriggeredAlert, error) {
	previous, err := e.previousValue(ctx, wallet, alert, alertType, current)
	if err != nil {
		return nil, err
	}

	crossings := Crossed(alert.Direction(), alert.Thresholds, previous, current)
	now := e.clock.Now()

	var record *domain.TriggeredAlert
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(crossings) > 0 {
			snapshot, err := json.Marshal(crossings)
			if err != nil {
				return err
			}
			record = &domain.TriggeredAlert{
				ID:                e.genID.Generate(),
				OrgID:             alert.OrgID,
				AlertID:           alert.ID,
				PreviousValue:     previous,
				CurrentValue:      current,
				CrossedThresholds: snapshot,
				TriggeredAt:       now,
			}
			if err := e.repo.InsertTriggeredAlert(ctx, tx, record); err != nil {
				return err
			}

			if e.outbox != nil {
				payload := map[string]any{
					"alert_id":           alert.ID.String(),
					"triggered_alert_id": record.ID.String(),
					"alert_type":         string(alert.AlertType),
					"code":               alert.Code,
					"name":               alert.Name,
					"current_value":      current.String(),
					"previous_value":     previous.String(),
					"crossed_thresholds": crossings,
				}
				if err := e.outbox.PublishTx(ctx, tx, events.Event{
					OrgID:     alert.OrgID,
					Type:      events.EventAlertTriggered,
					Payload:   payload,
					DedupeKey: "triggered_alert:" + record.ID.String(),
				}); err != nil {
					return err
				}
			}
		}

		// PreviousValue advances whether or not anything crossed.
		return e.repo.UpdateEvaluationState(ctx, tx, alert.ID, current, now)
	})
	if err != nil {
		return nil, err
	}

	alert.PreviousValue = decimal.NewNullDecimal(current)
	alert.LastProcessedAt = &now

	if record != nil {
		e.obsMetrics.RecordAlertTriggered(ctx, string(alert.AlertType))
		e.log.Info("alert triggered",
			zap.String("alert_id", alert.ID.String()),
			zap.String("alert_type", string(alert.AlertType)),
			zap.String("previous", previous.String()),
			zap.String("current", current.String()),
			zap.Int("crossings", len(crossings)),
		)
	}
	return record, nil
}

// previousValue resolves the baseline for detection. The first evaluation of
// an alert normally observes no movement, but when the wallet has settled
// history older than the alert the baseline is reconstructed from that
// history so changes that predate the alert still fire.
func (e *Evaluator) previousValue(
	ctx context.Context,
	wallet *walletdomain.Wallet,
	alert *domain.Alert,
	alertType domain.AlertType,
	current decimal.Decimal,
) (decimal.Decimal, error) {
	if alert.PreviousValue.Valid {
		return alert.PreviousValue.Decimal, nil
	}

	baseline, err := e.walletRepo.BalanceAsOf(ctx, e.db, wallet.ID, alert.CreatedAt)
	if err != nil {
		return decimal.Zero, err
	}
	if baseline.IsZero() {
		// No settled history predates the alert; first evaluation only
		// establishes the baseline.
		return current, nil
	}
	switch alertType {
	case domain.AlertTypeCreditsBalance, domain.AlertTypeCreditsOngoingBalance:
		return wallet.CreditsFor(baseline), nil
	default:
		return baseline, nil
	}
}

func currentValueFor(wallet *walletdomain.Wallet, alertType domain.AlertType) (decimal.Decimal, error) {
	switch alertType {
	case domain.AlertTypeBalanceAmount:
		return wallet.Balance, nil
	case domain.AlertTypeCreditsBalance:
		return wallet.CreditsBalance, nil
	case domain.AlertTypeOngoingBalance:
		return wallet.OngoingBalance, nil
	case domain.AlertTypeCreditsOngoingBalance:
		return wallet.CreditsOngoingBalance, nil
	default:
		return decimal.Zero, domain.ErrInvalidAlertType
	}
}
