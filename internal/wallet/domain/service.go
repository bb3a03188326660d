package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrNotSettled        = errors.New("transaction_not_settled")
	ErrNotOutbound       = errors.New("transaction_not_outbound")
	ErrInvalidAmount     = errors.New("invalid_amount")
)

// DriftReport is the outcome of a read-only wallet consistency check.
type DriftReport struct {
	WalletID        snowflake.ID
	ExpectedBalance decimal.Decimal
	ReportedBalance decimal.Decimal
	Drift           decimal.Decimal
	Issues          []string
}

// Clean reports whether the wallet reconstructed without issues.
func (r DriftReport) Clean() bool { return len(r.Issues) == 0 }

// Matcher allocates outbound consumption against inbound funding capacity.
type Matcher interface {
	// Allocate fully funds the outbound transaction from the candidate pool,
	// persisting consumption rows and remaining-amount updates on tx. The
	// pool entries' RemainingAmount fields are decremented in place.
	Allocate(ctx context.Context, tx *gorm.DB, outbound *WalletTransaction, pool []*WalletTransaction) ([]Consumption, error)
}

// DriftDetector validates that allocations reconstruct the reported balance.
type DriftDetector interface {
	CheckDrift(ctx context.Context, db *gorm.DB, wallet *Wallet) (DriftReport, error)
}
