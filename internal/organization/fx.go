package organization

import (
	"github.com/smallbiznis/creditcore/internal/organization/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(repository.Provide),
)
