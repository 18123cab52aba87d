package consumption

import (
	"go.uber.org/fx"

	"github.com/veeville2011/try-this-look-sub005/internal/consumption/service"
)

var Module = fx.Module("consumption.engine",
	fx.Provide(service.NewService),
)
