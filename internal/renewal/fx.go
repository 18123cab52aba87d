package renewal

import (
	"go.uber.org/fx"

	"github.com/veeville2011/try-this-look-sub005/internal/renewal/service"
)

var Module = fx.Module("renewal.reconciler",
	fx.Provide(service.NewService),
)
