package procedure

import (
	"github.com/smallbiznis/customsledger/internal/procedure/repository"
	"github.com/smallbiznis/customsledger/internal/procedure/service"
	"go.uber.org/fx"
)

var Module = fx.Module("procedure.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
