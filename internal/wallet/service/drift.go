package service

import (
	"context"

	"github.com/shopspring/decimal"
	obsmetrics "github.com/smallbiznis/creditcore/internal/observability/metrics"
	"github.com/smallbiznis/creditcore/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IssueBalanceDrift is reported when allocations do not reconstruct the
// externally reported balance.
const IssueBalanceDrift = "Balance drift ≥ 1 unit"

type DriftParams struct {
	fx.In

	Log        *zap.Logger
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Detector validates wallet ledger consistency without mutating state, so a
// dry run and a mutating backfill classify wallets identically.
type Detector struct {
	log        *zap.Logger
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewDriftDetector(p DriftParams) domain.DriftDetector {
	return &Detector{
		log:        p.Log.Named("wallet.drift"),
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

var oneUnit = decimal.NewFromInt(1)

func (d *Detector) CheckDrift(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) (domain.DriftReport, error) {
	report := domain.DriftReport{
		WalletID:        wallet.ID,
		ReportedBalance: wallet.Balance,
	}

	capacity, err := d.repo.SumSettledInboundRemaining(ctx, db, wallet.ID)
	if err != nil {
		return report, err
	}

	// Outstanding demand is what allocation has not yet consumed. Subtracting
	// it makes the check produce the same verdict before and after the
	// mutating backfill, which is what keeps dry runs honest.
	outbounds, err := d.repo.ListSettledOutbound(ctx, db, wallet.ID)
	if err != nil {
		return report, err
	}
	demand := decimal.Zero
	for _, outbound := range outbounds {
		consumptions, err := d.repo.ListConsumptionsByOutbound(ctx, db, outbound.ID)
		if err != nil {
			return report, err
		}
		demand = demand.Add(outbound.Amount.Sub(sumConsumptions(consumptions)))
	}

	expected := capacity.Sub(demand)
	report.ExpectedBalance = expected
	report.Drift = expected.Sub(wallet.Balance)

	if report.Drift.Abs().GreaterThanOrEqual(oneUnit) {
		report.Issues = append(report.Issues, IssueBalanceDrift)
	}

	if !report.Clean() {
		d.obsMetrics.RecordDrift(ctx, wallet.OrgID.String())
		d.log.Warn("wallet failed consistency check",
			zap.String("wallet_id", wallet.ID.String()),
			zap.String("expected", report.ExpectedBalance.String()),
			zap.String("reported", report.ReportedBalance.String()),
			zap.Strings("issues", report.Issues),
		)
	}
	return report, nil
}
