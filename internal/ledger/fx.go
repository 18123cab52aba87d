package ledger

import (
	"go.uber.org/fx"

	"github.com/veeville2011/try-this-look-sub005/internal/ledger/service"
)

var Module = fx.Module("ledger.store",
	fx.Provide(NewAccountLocks),
	fx.Provide(service.NewStore),
)
