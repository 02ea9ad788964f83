package invoice

import (
	"github.com/smallbiznis/aguas/internal/invoice/repository"
	"github.com/smallbiznis/aguas/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewNumberer),
)
