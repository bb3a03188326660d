package domain

import (
	"context"
	"errors"

	walletdomain "github.com/smallbiznis/creditcore/internal/wallet/domain"
)

var (
	ErrDuplicateThreshold = errors.New("duplicate_threshold_value")
	ErrInvalidAlertType   = errors.New("invalid_alert_type")
	ErrInvalidScope       = errors.New("invalid_alert_scope")
	ErrMissingThresholds  = errors.New("missing_thresholds")
)

// Validate rejects misconfigured alerts at creation time so evaluation can
// assume a consistent threshold set.
func (a *Alert) Validate() error {
	if a.AlertType == "" {
		return ErrInvalidAlertType
	}
	if a.WalletID != 0 && a.SubscriptionID != 0 {
		return ErrInvalidScope
	}
	if a.WalletID == 0 && a.SubscriptionID == 0 {
		return ErrInvalidScope
	}
	if a.WalletID != 0 && !WalletAlertType(a.AlertType) {
		return ErrInvalidAlertType
	}
	if a.SubscriptionID != 0 && WalletAlertType(a.AlertType) {
		return ErrInvalidAlertType
	}
	if len(a.Thresholds) == 0 {
		return ErrMissingThresholds
	}
	seen := make(map[string]struct{}, len(a.Thresholds))
	for _, threshold := range a.Thresholds {
		key := threshold.Value.String()
		if _, dup := seen[key]; dup {
			return ErrDuplicateThreshold
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Evaluator orchestrates alert evaluation for a wallet metric.
type Evaluator interface {
	Evaluate(ctx context.Context, wallet *walletdomain.Wallet, alertType AlertType) ([]TriggeredAlert, error)
}
