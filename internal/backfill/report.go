package backfill

import (
	"sync"
	"time"
)

// ProblemWallet is one wallet that failed validation. Problematic wallets are
// always reported, never silently skipped.
type ProblemWallet struct {
	WalletID     string
	CustomerID   string
	CustomerName string
	OrgID        string
	OrgName      string
	CreatedAt    time.Time
	Issues       []string
}

// CustomerError is a failed per-customer unit of work.
type CustomerError struct {
	CustomerID string
	Err        string
}

// Report accumulates run results across workers.
type Report struct {
	mu sync.Mutex

	CustomersProcessed int
	WalletsTraceable   int
	Problems           []ProblemWallet
	Errors             []CustomerError
}

func (r *Report) addProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CustomersProcessed++
}

func (r *Report) addTraceable(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.WalletsTraceable += n
}

func (r *Report) addProblem(problem ProblemWallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Problems = append(r.Problems, problem)
}

func (r *Report) addError(customerID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, CustomerError{CustomerID: customerID, Err: message})
}
