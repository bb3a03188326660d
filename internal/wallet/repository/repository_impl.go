package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/wallet/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListWalletsFilter) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	stmt := db.WithContext(ctx).Model(&domain.Wallet{})
	if filter.OrgID != 0 {
		stmt = stmt.Where("org_id = ?", filter.OrgID)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if !filter.IncludeTerminated {
		stmt = stmt.Where("status <> ?", string(domain.WalletStatusTerminated))
	}
	err := stmt.Order("created_at asc, id asc").Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r *repo) ListFundingCandidates(ctx context.Context, db *gorm.DB, walletID snowflake.ID) ([]*domain.WalletTransaction, error) {
	var txs []*domain.WalletTransaction
	err := db.WithContext(ctx).
		Model(&domain.WalletTransaction{}).
		Where("wallet_id = ?", walletID).
		Where("direction = ?", string(domain.DirectionInbound)).
		Where("settlement_status = ?", string(domain.SettlementSettled)).
		Where("remaining_amount > 0").
		Order("created_at asc, id asc").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) ListSettledOutbound(ctx context.Context, db *gorm.DB, walletID snowflake.ID) ([]*domain.WalletTransaction, error) {
	var txs []*domain.WalletTransaction
	err := db.WithContext(ctx).
		Model(&domain.WalletTransaction{}).
		Where("wallet_id = ?", walletID).
		Where("direction = ?", string(domain.DirectionOutbound)).
		Where("settlement_status = ?", string(domain.SettlementSettled)).
		Order("created_at asc, id asc").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) ListConsumptionsByOutbound(ctx context.Context, db *gorm.DB, outboundID snowflake.ID) ([]domain.Consumption, error) {
	var consumptions []domain.Consumption
	err := db.WithContext(ctx).
		Model(&domain.Consumption{}).
		Where("outbound_id = ?", outboundID).
		Order("created_at asc, id asc").
		Find(&consumptions).Error
	if err != nil {
		return nil, err
	}
	return consumptions, nil
}

func (r *repo) InsertConsumption(ctx context.Context, db *gorm.DB, consumption *domain.Consumption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consumptions (id, org_id, wallet_id, inbound_id, outbound_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		consumption.ID,
		consumption.OrgID,
		consumption.WalletID,
		consumption.InboundID,
		consumption.OutboundID,
		consumption.Amount,
		consumption.CreatedAt,
	).Error
}

func (r *repo) UpdateRemainingAmount(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, remaining decimal.Decimal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallet_transactions SET remaining_amount = ? WHERE id = ?`,
		remaining,
		transactionID,
	).Error
}

func (r *repo) SumSettledInboundRemaining(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (decimal.Decimal, error) {
	return r.sumInbound(ctx, db, walletID, "remaining_amount")
}

func (r *repo) SumSettledInboundAmount(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (decimal.Decimal, error) {
	return r.sumInbound(ctx, db, walletID, "amount")
}

func (r *repo) sumInbound(ctx context.Context, db *gorm.DB, walletID snowflake.ID, column string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.WithContext(ctx).
		Model(&domain.WalletTransaction{}).
		Select("SUM("+column+")").
		Where("wallet_id = ?", walletID).
		Where("direction = ?", string(domain.DirectionInbound)).
		Where("settlement_status = ?", string(domain.SettlementSettled)).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repo) BalanceAsOf(ctx context.Context, db *gorm.DB, walletID snowflake.ID, at time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.WithContext(ctx).
		Model(&domain.WalletTransaction{}).
		Select(`SUM(CASE WHEN direction = ? THEN amount ELSE -amount END)`,
			string(domain.DirectionInbound)).
		Where("wallet_id = ?", walletID).
		Where("settlement_status = ?", string(domain.SettlementSettled)).
		Where("created_at < ?", at).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repo) MarkTraceable(ctx context.Context, db *gorm.DB, walletID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallets SET traceable = ?, updated_at = ? WHERE id = ?`,
		true,
		time.Now().UTC(),
		walletID,
	).Error
}
