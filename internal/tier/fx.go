package tier

import (
	"github.com/smallbiznis/aguas/internal/tier/repository"
	"github.com/smallbiznis/aguas/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.catalog",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
