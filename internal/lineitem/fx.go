package lineitem

import (
	"github.com/smallbiznis/customsledger/internal/lineitem/repository"
	"github.com/smallbiznis/customsledger/internal/lineitem/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lineitem.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
