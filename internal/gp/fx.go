package gp

import (
	"github.com/shopledger/shopledger/internal/gp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gp.calculator",
	fx.Provide(service.NewCalculator),
)
