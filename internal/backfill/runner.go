package backfill

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/clock"
	customerdomain "github.com/smallbiznis/creditcore/internal/customer/domain"
	"github.com/smallbiznis/creditcore/internal/events"
	obsmetrics "github.com/smallbiznis/creditcore/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/creditcore/internal/organization/domain"
	"github.com/smallbiznis/creditcore/internal/orgcontext"
	walletdomain "github.com/smallbiznis/creditcore/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Config       Config `optional:"true"`
	CustomerRepo customerdomain.Repository
	OrgRepo      orgdomain.Repository
	WalletRepo   walletdomain.Repository
	Matcher      walletdomain.Matcher
	Drift        walletdomain.DriftDetector
	Outbox       *events.Outbox      `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

// Runner reconciles wallet ledgers customer by customer. All wallets of one
// customer are processed inside a single transaction: a failure on any wallet
// rolls back every wallet change for that customer, leaving all of them
// non-traceable. Different customers run concurrently on a bounded pool.
type Runner struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	cfg          Config
	customerRepo customerdomain.Repository
	orgRepo      orgdomain.Repository
	walletRepo   walletdomain.Repository
	matcher      walletdomain.Matcher
	drift        walletdomain.DriftDetector
	outbox       *events.Outbox
	obsMetrics   *obsmetrics.Metrics
}

func NewRunner(p Params) *Runner {
	return &Runner{
		db:           p.DB,
		log:          p.Log.Named("backfill"),
		clock:        p.Clock,
		cfg:          p.Config.withDefaults(),
		customerRepo: p.CustomerRepo,
		orgRepo:      p.OrgRepo,
		walletRepo:   p.WalletRepo,
		matcher:      p.Matcher,
		drift:        p.Drift,
		outbox:       p.Outbox,
		obsMetrics:   p.ObsMetrics,
	}
}

// Run walks every customer in scope and returns the accumulated report.
// Failed customers are recorded and left for the next scheduled pass; the
// runner never retries on its own.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	var orgID snowflake.ID
	if r.cfg.OrganizationID != "" {
		parsed, err := snowflake.ParseString(r.cfg.OrganizationID)
		if err != nil {
			return nil, err
		}
		orgID = parsed
		ctx = orgcontext.WithOrgID(ctx, int64(orgID))
	}

	report := &Report{}
	ids := make(chan snowflake.ID)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.ThreadCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for customerID := range ids {
				r.runCustomer(ctx, customerID, report)
			}
		}()
	}

	var (
		afterID snowflake.ID
		pageErr error
	)
	for {
		page, err := r.customerRepo.ListIDs(ctx, r.db, orgID, afterID, r.cfg.BatchSize)
		if err != nil {
			pageErr = err
			break
		}
		if len(page) == 0 {
			break
		}
		for _, id := range page {
			ids <- id
		}
		afterID = page[len(page)-1]
	}
	close(ids)
	wg.Wait()

	if pageErr != nil {
		return report, pageErr
	}

	r.log.Info("backfill run finished",
		zap.Bool("dry_run", r.cfg.DryRun),
		zap.Int("customers", report.CustomersProcessed),
		zap.Int("wallets_traceable", report.WalletsTraceable),
		zap.Int("problems", len(report.Problems)),
		zap.Int("errors", len(report.Errors)),
	)

	if r.cfg.OutputFile != "" {
		if err := WriteReport(r.cfg.OutputFile, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// runCustomer is one atomic unit of work. Customers touch disjoint rows, so
// units are safe to run concurrently; wallets within a customer run
// sequentially.
func (r *Runner) runCustomer(ctx context.Context, customerID snowflake.ID, report *Report) {
	report.addProcessed()

	traceable := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets, err := r.walletRepo.List(ctx, tx, walletdomain.ListWalletsFilter{
			CustomerID:        customerID,
			IncludeTerminated: r.cfg.IncludeTerminated,
		})
		if err != nil {
			return err
		}

		for _, wallet := range wallets {
			if wallet.Traceable {
				continue
			}

			clean, err := r.runWallet(ctx, tx, wallet, report)
			if err != nil {
				return err
			}
			if clean {
				traceable++
			}
		}
		return nil
	})
	if err != nil {
		r.obsMetrics.RecordBackfillCustomer(ctx, "failed")
		r.log.Warn("customer unit of work failed",
			zap.String("customer_id", customerID.String()),
			zap.Error(err),
		)
		report.addError(customerID.String(), err.Error())
		return
	}

	r.obsMetrics.RecordBackfillCustomer(ctx, "ok")
	report.addTraceable(traceable)
}

// runWallet validates one wallet and, outside dry-run, funds its outbound
// transactions and marks it traceable. Returns whether the wallet came out
// clean. A funding failure is returned as an error so the customer
// transaction rolls back.
func (r *Runner) runWallet(ctx context.Context, tx *gorm.DB, wallet *walletdomain.Wallet, report *Report) (bool, error) {
	driftReport, err := r.drift.CheckDrift(ctx, tx, wallet)
	if err != nil {
		return false, err
	}
	if !driftReport.Clean() {
		r.reportProblem(ctx, tx, wallet, driftReport.Issues, report)
		return false, nil
	}

	if r.cfg.DryRun {
		// Same verdict as the mutating path, without writes: the wallet
		// fails when outstanding outbound exceeds unallocated capacity.
		feasible, err := r.checkFundable(ctx, tx, wallet)
		if err != nil {
			return false, err
		}
		if !feasible {
			return false, walletdomain.ErrInsufficientFunds
		}
		return true, nil
	}

	pool, err := r.walletRepo.ListFundingCandidates(ctx, tx, wallet.ID)
	if err != nil {
		return false, err
	}
	outbounds, err := r.walletRepo.ListSettledOutbound(ctx, tx, wallet.ID)
	if err != nil {
		return false, err
	}
	for _, outbound := range outbounds {
		if _, err := r.matcher.Allocate(ctx, tx, outbound, pool); err != nil {
			return false, err
		}
	}

	if err := r.walletRepo.MarkTraceable(ctx, tx, wallet.ID); err != nil {
		return false, err
	}
	if r.outbox != nil {
		if err := r.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: wallet.OrgID,
			Type:  events.EventWalletTraceable,
			Payload: map[string]any{
				"wallet_id":   wallet.ID.String(),
				"customer_id": wallet.CustomerID.String(),
			},
			DedupeKey: "wallet_traceable:" + wallet.ID.String(),
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// checkFundable compares outstanding outbound demand against unallocated
// inbound capacity.
func (r *Runner) checkFundable(ctx context.Context, tx *gorm.DB, wallet *walletdomain.Wallet) (bool, error) {
	capacity, err := r.walletRepo.SumSettledInboundRemaining(ctx, tx, wallet.ID)
	if err != nil {
		return false, err
	}

	outbounds, err := r.walletRepo.ListSettledOutbound(ctx, tx, wallet.ID)
	if err != nil {
		return false, err
	}
	demand := decimal.Zero
	for _, outbound := range outbounds {
		consumptions, err := r.walletRepo.ListConsumptionsByOutbound(ctx, tx, outbound.ID)
		if err != nil {
			return false, err
		}
		allocated := decimal.Zero
		for _, c := range consumptions {
			allocated = allocated.Add(c.Amount)
		}
		demand = demand.Add(outbound.Amount.Sub(allocated))
	}
	return demand.LessThanOrEqual(capacity), nil
}

func (r *Runner) reportProblem(ctx context.Context, tx *gorm.DB, wallet *walletdomain.Wallet, issues []string, report *Report) {
	problem := ProblemWallet{
		WalletID:   wallet.ID.String(),
		CustomerID: wallet.CustomerID.String(),
		OrgID:      wallet.OrgID.String(),
		CreatedAt:  wallet.CreatedAt,
		Issues:     issues,
	}
	if customer, err := r.customerRepo.FindByID(ctx, tx, wallet.OrgID, wallet.CustomerID); err == nil && customer != nil {
		problem.CustomerName = customer.Name
	}
	if org, err := r.orgRepo.FindByID(ctx, tx, wallet.OrgID); err == nil && org != nil {
		problem.OrgName = org.Name
	}
	r.log.Warn("problematic wallet",
		zap.String("wallet_id", problem.WalletID),
		zap.Strings("issues", problem.Issues),
	)
	report.addProblem(problem)
}
