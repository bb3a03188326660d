package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListWalletsFilter struct {
	OrgID             snowflake.ID
	CustomerID        snowflake.ID
	IncludeTerminated bool
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Wallet, error)
	List(ctx context.Context, db *gorm.DB, filter ListWalletsFilter) ([]*Wallet, error)

	// ListFundingCandidates returns the settled inbound transactions of the
	// wallet that still have unallocated capacity.
	ListFundingCandidates(ctx context.Context, db *gorm.DB, walletID snowflake.ID) ([]*WalletTransaction, error)
	// ListSettledOutbound returns the wallet's settled outbound transactions
	// in creation order.
	ListSettledOutbound(ctx context.Context, db *gorm.DB, walletID snowflake.ID) ([]*WalletTransaction, error)

	ListConsumptionsByOutbound(ctx context.Context, db *gorm.DB, outboundID snowflake.ID) ([]Consumption, error)
	InsertConsumption(ctx context.Context, db *gorm.DB, consumption *Consumption) error
	UpdateRemainingAmount(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, remaining decimal.Decimal) error

	SumSettledInboundRemaining(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (decimal.Decimal, error)
	SumSettledInboundAmount(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (decimal.Decimal, error)
	// BalanceAsOf reconstructs the wallet balance from settled transactions
	// created strictly before the given time.
	BalanceAsOf(ctx context.Context, db *gorm.DB, walletID snowflake.ID, at time.Time) (decimal.Decimal, error)
	MarkTraceable(ctx context.Context, db *gorm.DB, walletID snowflake.ID) error
}
