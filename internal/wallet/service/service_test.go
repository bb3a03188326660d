package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/wallet/domain"
	"github.com/smallbiznis/creditcore/internal/wallet/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupWalletDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&domain.Wallet{},
		&domain.WalletTransaction{},
		&domain.Consumption{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newMatcher(t *testing.T, node *snowflake.Node) domain.Matcher {
	t.Helper()
	return NewMatcher(MatcherParams{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func newDetector(t *testing.T) domain.DriftDetector {
	t.Helper()
	return NewDriftDetector(DriftParams{
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
}

func seedWallet(t *testing.T, db *gorm.DB, node *snowflake.Node, balance decimal.Decimal) *domain.Wallet {
	t.Helper()
	wallet := &domain.Wallet{
		ID:         node.Generate(),
		OrgID:      node.Generate(),
		CustomerID: node.Generate(),
		Currency:   "USD",
		Rate:       decimal.NewFromInt(1),
		Balance:    balance,
		Status:     domain.WalletStatusActive,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return wallet
}

func seedInbound(
	t *testing.T,
	db *gorm.DB,
	node *snowflake.Node,
	wallet *domain.Wallet,
	kind domain.FundingKind,
	amount int64,
	priority int,
	createdAt time.Time,
) *domain.WalletTransaction {
	t.Helper()
	settledAt := createdAt
	tx := &domain.WalletTransaction{
		ID:               node.Generate(),
		OrgID:            wallet.OrgID,
		WalletID:         wallet.ID,
		Direction:        domain.DirectionInbound,
		FundingKind:      kind,
		SettlementStatus: domain.SettlementSettled,
		Amount:           decimal.NewFromInt(amount),
		RemainingAmount:  decimal.NewFromInt(amount),
		Priority:         priority,
		SettledAt:        &settledAt,
		CreatedAt:        createdAt,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("seed inbound: %v", err)
	}
	return tx
}

func seedOutbound(
	t *testing.T,
	db *gorm.DB,
	node *snowflake.Node,
	wallet *domain.Wallet,
	amount int64,
	createdAt time.Time,
) *domain.WalletTransaction {
	t.Helper()
	settledAt := createdAt
	tx := &domain.WalletTransaction{
		ID:               node.Generate(),
		OrgID:            wallet.OrgID,
		WalletID:         wallet.ID,
		Direction:        domain.DirectionOutbound,
		FundingKind:      domain.FundingKindInvoiced,
		SettlementStatus: domain.SettlementSettled,
		Amount:           decimal.NewFromInt(amount),
		SettledAt:        &settledAt,
		CreatedAt:        createdAt,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("seed outbound: %v", err)
	}
	return tx
}

func repositoryCandidates(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) ([]*domain.WalletTransaction, error) {
	return repository.Provide().ListFundingCandidates(ctx, db, wallet.ID)
}

func remainingOf(t *testing.T, db *gorm.DB, id snowflake.ID) decimal.Decimal {
	t.Helper()
	var tx domain.WalletTransaction
	if err := db.Where("id = ?", id).Take(&tx).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	return tx.RemainingAmount
}

func countConsumptions(t *testing.T, db *gorm.DB, walletID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&domain.Consumption{}).Where("wallet_id = ?", walletID).Count(&count).Error; err != nil {
		t.Fatalf("count consumptions: %v", err)
	}
	return count
}
