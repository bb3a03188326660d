// Package domain contains the prepaid wallet ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionDirection distinguishes funding from consumption.
type TransactionDirection string

const (
	DirectionInbound  TransactionDirection = "inbound"
	DirectionOutbound TransactionDirection = "outbound"
)

// FundingKind classifies where the money in a transaction comes from.
// Inbound transactions are granted or purchased; outbound are invoiced.
type FundingKind string

const (
	FundingKindGranted   FundingKind = "granted"
	FundingKindPurchased FundingKind = "purchased"
	FundingKindInvoiced  FundingKind = "invoiced"
)

// SettlementStatus tracks whether a transaction has settled.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

// WalletStatus is the wallet lifecycle state.
type WalletStatus string

const (
	WalletStatusActive     WalletStatus = "active"
	WalletStatusTerminated WalletStatus = "terminated"
)

// DefaultPriority is assigned when funding carries no explicit priority.
const DefaultPriority = 50

// Wallet is a customer's prepaid credit balance container. Balances are in
// currency units; credit balances divide by Rate.
type Wallet struct {
	ID                    snowflake.ID                 `gorm:"primaryKey" json:"id"`
	OrgID                 snowflake.ID                 `gorm:"not null;index" json:"org_id"`
	CustomerID            snowflake.ID                 `gorm:"not null;index" json:"customer_id"`
	Currency              string                       `gorm:"type:text;not null" json:"currency"`
	Rate                  decimal.Decimal              `gorm:"type:numeric;not null;default:1" json:"rate"`
	Balance               decimal.Decimal              `gorm:"type:numeric;not null;default:0" json:"balance"`
	CreditsBalance        decimal.Decimal              `gorm:"type:numeric;not null;default:0" json:"credits_balance"`
	OngoingBalance        decimal.Decimal              `gorm:"type:numeric;not null;default:0" json:"ongoing_balance"`
	CreditsOngoingBalance decimal.Decimal              `gorm:"type:numeric;not null;default:0" json:"credits_ongoing_balance"`
	Traceable             bool                         `gorm:"not null;default:false" json:"traceable"`
	AppliesTo             datatypes.JSONSlice[string]  `gorm:"type:text" json:"applies_to"`
	Status                WalletStatus                 `gorm:"type:text;not null;default:'active'" json:"status"`
	CreatedAt             time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }

// AppliesToMetric reports whether the wallet funds usage for the given
// billable-metric code. A wallet with no scope funds all usage.
func (w *Wallet) AppliesToMetric(code string) bool {
	if len(w.AppliesTo) == 0 {
		return true
	}
	for _, c := range w.AppliesTo {
		if c == code {
			return true
		}
	}
	return false
}

// CreditsFor converts a currency amount into credit units via the wallet rate.
func (w *Wallet) CreditsFor(amount decimal.Decimal) decimal.Decimal {
	if w.Rate.IsZero() {
		return decimal.Zero
	}
	return amount.Div(w.Rate)
}

// WalletTransaction is one funding or consumption event against a wallet.
// Settled transactions are immutable except for RemainingAmount, which only
// the consumption matcher mutates.
type WalletTransaction struct {
	ID               snowflake.ID         `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID         `gorm:"not null;index" json:"org_id"`
	WalletID         snowflake.ID         `gorm:"not null;index" json:"wallet_id"`
	Direction        TransactionDirection `gorm:"type:text;not null" json:"direction"`
	FundingKind      FundingKind          `gorm:"type:text;not null" json:"funding_kind"`
	SettlementStatus SettlementStatus     `gorm:"type:text;not null;default:'pending'" json:"settlement_status"`
	Amount           decimal.Decimal      `gorm:"type:numeric;not null" json:"amount"`
	CreditAmount     decimal.Decimal      `gorm:"type:numeric;not null;default:0" json:"credit_amount"`
	RemainingAmount  decimal.Decimal      `gorm:"type:numeric;not null;default:0" json:"remaining_amount"`
	Priority         int                  `gorm:"not null;default:50" json:"priority"`
	SettledAt        *time.Time           `json:"settled_at"`
	CreatedAt        time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (WalletTransaction) TableName() string { return "wallet_transactions" }

// IsSettled reports whether the transaction has settled.
func (t *WalletTransaction) IsSettled() bool {
	return t.SettlementStatus == SettlementSettled
}

// Consumption links one inbound funding transaction to one outbound
// consumption transaction. Rows are append-only.
type Consumption struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID    `gorm:"not null;index" json:"org_id"`
	WalletID   snowflake.ID    `gorm:"not null;index" json:"wallet_id"`
	InboundID  snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_consumptions_pair,priority:1" json:"inbound_id"`
	OutboundID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_consumptions_pair,priority:2" json:"outbound_id"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Consumption) TableName() string { return "consumptions" }
