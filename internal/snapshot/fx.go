package snapshot

import (
	"github.com/shopledger/shopledger/internal/config"
	"github.com/shopledger/shopledger/internal/snapshot/repository"
	"github.com/shopledger/shopledger/internal/snapshot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("snapshot",
	fx.Provide(
		repository.Provide,
		service.NewService,
		func(cfg config.Config) service.Config {
			return service.Config{
				Workers:        cfg.Pipeline.Workers,
				RowTimeout:     cfg.Pipeline.RowTimeout,
				MaxErrorDetail: cfg.Pipeline.MaxErrorDetail,
			}
		},
	),
)
