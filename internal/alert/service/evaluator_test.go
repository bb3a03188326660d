package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/alert/domain"
	alertrepo "github.com/smallbiznis/creditcore/internal/alert/repository"
	"github.com/smallbiznis/creditcore/internal/clock"
	"github.com/smallbiznis/creditcore/internal/events"
	walletdomain "github.com/smallbiznis/creditcore/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/creditcore/internal/wallet/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type evaluatorFixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	repo      domain.Repository
	evaluator domain.Evaluator
}

func setupEvaluator(t *testing.T) *evaluatorFixture {
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
		&walletdomain.Wallet{},
		&walletdomain.WalletTransaction{},
		&walletdomain.Consumption{},
		&domain.Alert{},
		&domain.AlertThreshold{},
		&domain.TriggeredAlert{},
		&events.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	repo := alertrepo.Provide(node)

	evaluator := NewEvaluator(EvaluatorParams{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       repo,
		WalletRepo: walletrepo.Provide(),
		Outbox:     events.NewOutbox(zap.NewNop(), node),
	})
	return &evaluatorFixture{
		db:        db,
		node:      node,
		clock:     fake,
		repo:      repo,
		evaluator: evaluator,
	}
}

func (f *evaluatorFixture) seedWallet(t *testing.T, balance decimal.Decimal) *walletdomain.Wallet {
	t.Helper()
	wallet := &walletdomain.Wallet{
		ID:         f.node.Generate(),
		OrgID:      f.node.Generate(),
		CustomerID: f.node.Generate(),
		Currency:   "USD",
		Rate:       decimal.NewFromInt(1),
		Balance:    balance,
		Status:     walletdomain.WalletStatusActive,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.db.Create(wallet).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return wallet
}

func (f *evaluatorFixture) seedAlert(t *testing.T, wallet *walletdomain.Wallet, previous *int64, thresholds ...domain.AlertThreshold) *domain.Alert {
	t.Helper()
	alert := &domain.Alert{
		OrgID:      wallet.OrgID,
		WalletID:   wallet.ID,
		AlertType:  domain.AlertTypeBalanceAmount,
		Code:       "balance_watch",
		Name:       "Balance watch",
		Thresholds: thresholds,
		CreatedAt:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	if previous != nil {
		alert.PreviousValue = decimal.NewNullDecimal(decimal.NewFromInt(*previous))
	}
	if err := f.repo.Insert(context.Background(), f.db, alert); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return alert
}

func (f *evaluatorFixture) reloadAlert(t *testing.T, id snowflake.ID) *domain.Alert {
	t.Helper()
	var alert domain.Alert
	if err := f.db.Where("id = ?", id).Take(&alert).Error; err != nil {
		t.Fatalf("reload alert: %v", err)
	}
	return &alert
}

func (f *evaluatorFixture) countOutbox(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&events.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}

func int64p(v int64) *int64 { return &v }

func TestEvaluatePersistsTriggeredAlert(t *testing.T) {
	f := setupEvaluator(t)
	ctx := context.Background()

	wallet := f.seedWallet(t, decimal.NewFromInt(45))
	alert := f.seedAlert(t, wallet, int64p(70), threshold("low", 50, false))

	triggered, err := f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("expected 1 triggered alert, got %d", len(triggered))
	}
	record := triggered[0]
	if !record.PreviousValue.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("previous value %s, want 70", record.PreviousValue)
	}
	if !record.CurrentValue.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("current value %s, want 45", record.CurrentValue)
	}

	persisted, err := f.repo.ListTriggeredByAlert(ctx, f.db, alert.ID)
	if err != nil {
		t.Fatalf("list triggered: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(persisted))
	}
	if got := f.countOutbox(t); got != 1 {
		t.Fatalf("outbox rows %d, want 1", got)
	}

	reloaded := f.reloadAlert(t, alert.ID)
	if !reloaded.PreviousValue.Valid || !reloaded.PreviousValue.Decimal.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("previous value not advanced: %+v", reloaded.PreviousValue)
	}
	if reloaded.LastProcessedAt == nil {
		t.Fatal("last processed at not set")
	}
}

func TestEvaluateAdvancesStateWithoutCrossing(t *testing.T) {
	f := setupEvaluator(t)
	ctx := context.Background()

	wallet := f.seedWallet(t, decimal.NewFromInt(80))
	alert := f.seedAlert(t, wallet, int64p(90), threshold("low", 50, false))

	triggered, err := f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 0 {
		t.Fatalf("expected no triggered alerts, got %d", len(triggered))
	}
	if got := f.countOutbox(t); got != 0 {
		t.Fatalf("outbox rows %d, want 0", got)
	}

	reloaded := f.reloadAlert(t, alert.ID)
	if !reloaded.PreviousValue.Valid || !reloaded.PreviousValue.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("previous value not advanced: %+v", reloaded.PreviousValue)
	}
}

func TestEvaluateFirstRunEstablishesBaseline(t *testing.T) {
	f := setupEvaluator(t)
	ctx := context.Background()

	// The wallet sits below the threshold already, but with no settled
	// history predating the alert the first evaluation only records the
	// baseline.
	wallet := f.seedWallet(t, decimal.NewFromInt(40))
	alert := f.seedAlert(t, wallet, nil, threshold("low", 50, false))

	triggered, err := f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 0 {
		t.Fatalf("expected no triggered alerts, got %d", len(triggered))
	}

	reloaded := f.reloadAlert(t, alert.ID)
	if !reloaded.PreviousValue.Valid || !reloaded.PreviousValue.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("baseline not recorded: %+v", reloaded.PreviousValue)
	}
}

func TestEvaluateFirstRunUsesHistoricalBaseline(t *testing.T) {
	f := setupEvaluator(t)
	ctx := context.Background()

	wallet := f.seedWallet(t, decimal.NewFromInt(40))
	// A settled grant predates the alert, so the drop from the grant amount
	// to the current balance happened on this alert's watch.
	grantedAt := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	grant := &walletdomain.WalletTransaction{
		ID:               f.node.Generate(),
		OrgID:            wallet.OrgID,
		WalletID:         wallet.ID,
		Direction:        walletdomain.DirectionInbound,
		FundingKind:      walletdomain.FundingKindGranted,
		SettlementStatus: walletdomain.SettlementSettled,
		Amount:           decimal.NewFromInt(100),
		RemainingAmount:  decimal.NewFromInt(100),
		Priority:         walletdomain.DefaultPriority,
		SettledAt:        &grantedAt,
		CreatedAt:        grantedAt,
	}
	if err := f.db.Create(grant).Error; err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	f.seedAlert(t, wallet, nil, threshold("low", 50, false))

	triggered, err := f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("expected 1 triggered alert, got %d", len(triggered))
	}
	if !triggered[0].PreviousValue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("baseline %s, want reconstructed 100", triggered[0].PreviousValue)
	}
}

func TestEvaluateSplitSwingFiresEachThresholdOnce(t *testing.T) {
	f := setupEvaluator(t)
	ctx := context.Background()

	wallet := f.seedWallet(t, decimal.NewFromInt(0))
	alert := f.seedAlert(t, wallet, int64p(100),
		threshold("zeroish", 50, false),
		threshold("overdrawn", -50, false),
	)

	triggered, err := f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("first swing: expected 1 triggered alert, got %d", len(triggered))
	}

	wallet.Balance = decimal.NewFromInt(-55)
	if err := f.db.Model(&walletdomain.Wallet{}).Where("id = ?", wallet.ID).
		Update("balance", wallet.Balance).Error; err != nil {
		t.Fatalf("update balance: %v", err)
	}
	f.clock.Advance(time.Hour)

	triggered, err = f.evaluator.Evaluate(ctx, wallet, domain.AlertTypeBalanceAmount)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("second swing: expected 1 triggered alert, got %d", len(triggered))
	}

	persisted, err := f.repo.ListTriggeredByAlert(ctx, f.db, alert.ID)
	if err != nil {
		t.Fatalf("list triggered: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(persisted))
	}
	if got := f.countOutbox(t); got != 2 {
		t.Fatalf("outbox rows %d, want 2", got)
	}
}
