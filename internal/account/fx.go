package account

import (
	"go.uber.org/fx"

	"github.com/veeville2011/try-this-look-sub005/internal/account/service"
)

var Module = fx.Module("account.service",
	fx.Provide(service.NewService),
)
