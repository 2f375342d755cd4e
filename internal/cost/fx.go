package cost

import (
	"github.com/smallbiznis/customsledger/internal/cost/repository"
	"github.com/smallbiznis/customsledger/internal/cost/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cost.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
