package credits

import (
	"go.uber.org/fx"

	"github.com/veeville2011/try-this-look-sub005/internal/credits/service"
)

var Module = fx.Module("credits.service",
	fx.Provide(service.NewCouponService),
	fx.Provide(service.NewPurchaseService),
)
