package wallet

import (
	"github.com/smallbiznis/creditcore/internal/wallet/repository"
	"github.com/smallbiznis/creditcore/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewMatcher),
	fx.Provide(service.NewDriftDetector),
)
