package overage

import (
	"go.uber.org/fx"

	overagedomain "github.com/veeville2011/try-this-look-sub005/internal/overage/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/overage/gateway"
	"github.com/veeville2011/try-this-look-sub005/internal/overage/service"
)

var Module = fx.Module("overage.calculator",
	fx.Provide(func(g *gateway.HTTPGateway) overagedomain.Gateway { return g }),
	fx.Provide(gateway.NewHTTPGateway),
	fx.Provide(service.NewCalculator),
)
