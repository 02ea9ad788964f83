package identity

import (
	"github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/internal/identity/repository"
	"github.com/smallbiznis/aguas/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Lookup { return svc }),
)
