package migration

import (
	alertdomain "github.com/smallbiznis/creditcore/internal/alert/domain"
	"github.com/smallbiznis/creditcore/internal/config"
	customerdomain "github.com/smallbiznis/creditcore/internal/customer/domain"
	"github.com/smallbiznis/creditcore/internal/events"
	orgdomain "github.com/smallbiznis/creditcore/internal/organization/domain"
	walletdomain "github.com/smallbiznis/creditcore/internal/wallet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres targets (local sqlite, tests) take the gorm schema.
		return conn.AutoMigrate(
			&orgdomain.Organization{},
			&customerdomain.Customer{},
			&walletdomain.Wallet{},
			&walletdomain.WalletTransaction{},
			&walletdomain.Consumption{},
			&alertdomain.Alert{},
			&alertdomain.AlertThreshold{},
			&alertdomain.TriggeredAlert{},
			&events.OutboxEvent{},
		)
	}),
)
