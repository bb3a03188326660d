package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/creditcore/internal/observability/metrics"
	"github.com/smallbiznis/creditcore/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MatcherParams struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Matcher funds outbound consumption from inbound capacity following the
// granted-first, priority, FIFO ordering policy.
type Matcher struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewMatcher(p MatcherParams) domain.Matcher {
	return &Matcher{
		log:        p.Log.Named("wallet.matcher"),
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// consumeKey is the composite sort key of the ordering policy. Comparison is
// a tuple comparison so new tie-break dimensions slot in without control-flow
// changes.
type consumeKey struct {
	kindRank  int
	priority  int
	createdAt int64
	id        int64
}

func (k consumeKey) less(other consumeKey) bool {
	if k.kindRank != other.kindRank {
		return k.kindRank < other.kindRank
	}
	if k.priority != other.priority {
		return k.priority < other.priority
	}
	if k.createdAt != other.createdAt {
		return k.createdAt < other.createdAt
	}
	return k.id < other.id
}

func keyOf(tx *domain.WalletTransaction) consumeKey {
	return consumeKey{
		kindRank:  fundingKindRank(tx.FundingKind),
		priority:  tx.Priority,
		createdAt: tx.CreatedAt.UnixNano(),
		id:        int64(tx.ID),
	}
}

func fundingKindRank(kind domain.FundingKind) int {
	switch kind {
	case domain.FundingKindGranted:
		return 0
	case domain.FundingKindPurchased:
		return 1
	default:
		return 2
	}
}

// Allocate walks the candidate pool in consume-first order and emits one
// consumption row per (inbound, outbound) pair until the outbound amount is
// fully covered. An exhausted pool is a data-integrity failure, not a
// tolerated partial state.
func (m *Matcher) Allocate(
	ctx context.Context,
	tx *gorm.DB,
	outbound *domain.WalletTransaction,
	pool []*domain.WalletTransaction,
) ([]domain.Consumption, error) {
	if outbound.Direction != domain.DirectionOutbound {
		return nil, domain.ErrNotOutbound
	}
	if !outbound.IsSettled() {
		return nil, domain.ErrNotSettled
	}
	if !outbound.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	existing, err := m.repo.ListConsumptionsByOutbound(ctx, tx, outbound.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		allocated := sumConsumptions(existing)
		if allocated.Equal(outbound.Amount) {
			return existing, nil
		}
		return nil, fmt.Errorf("outbound %s partially allocated (%s of %s): %w",
			outbound.ID, allocated, outbound.Amount, domain.ErrInsufficientFunds)
	}

	candidates := make([]*domain.WalletTransaction, 0, len(pool))
	for _, candidate := range pool {
		if candidate.Direction != domain.DirectionInbound || !candidate.IsSettled() {
			continue
		}
		if !candidate.RemainingAmount.IsPositive() {
			continue
		}
		candidates = append(candidates, candidate)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return keyOf(candidates[i]).less(keyOf(candidates[j]))
	})

	left := outbound.Amount
	consumptions := make([]domain.Consumption, 0, len(candidates))
	consumedKinds := make([]domain.FundingKind, 0, len(candidates))
	for _, inbound := range candidates {
		if !left.IsPositive() {
			break
		}
		consumed := decimalMin(inbound.RemainingAmount, left)
		consumption := domain.Consumption{
			ID:         m.genID.Generate(),
			OrgID:      outbound.OrgID,
			WalletID:   outbound.WalletID,
			InboundID:  inbound.ID,
			OutboundID: outbound.ID,
			Amount:     consumed,
			CreatedAt:  outbound.CreatedAt,
		}
		inbound.RemainingAmount = inbound.RemainingAmount.Sub(consumed)
		left = left.Sub(consumed)
		consumptions = append(consumptions, consumption)
		consumedKinds = append(consumedKinds, inbound.FundingKind)
	}

	if left.IsPositive() {
		return nil, fmt.Errorf("outbound %s needs %s more than available capacity: %w",
			outbound.ID, left, domain.ErrInsufficientFunds)
	}

	for i := range consumptions {
		if err := m.repo.InsertConsumption(ctx, tx, &consumptions[i]); err != nil {
			return nil, err
		}
	}
	for _, inbound := range candidates {
		if err := m.repo.UpdateRemainingAmount(ctx, tx, inbound.ID, inbound.RemainingAmount); err != nil {
			return nil, err
		}
	}

	for _, kind := range consumedKinds {
		m.obsMetrics.RecordConsumption(ctx, string(kind))
	}
	m.log.Debug("outbound funded",
		zap.String("outbound_id", outbound.ID.String()),
		zap.Int("consumptions", len(consumptions)),
	)
	return consumptions, nil
}
