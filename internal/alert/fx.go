package alert

import (
	"github.com/smallbiznis/creditcore/internal/alert/repository"
	"github.com/smallbiznis/creditcore/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewEvaluator),
)
