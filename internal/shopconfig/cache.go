package shopconfig

import (
	"context"
	"time"

	"github.com/shopledger/shopledger/internal/cache"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/config"
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"github.com/shopledger/shopledger/internal/tmclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

type Params struct {
	fx.In

	Client tmclient.Client
	Clock  clock.Clock
	Log    *zap.Logger
	Config config.Config `optional:"true"`
}

// Cache serves per-shop rate tables with a fixed TTL. A cache miss triggers
// exactly one upstream fetch regardless of how many calculations ask
// concurrently; the rest await that result. A failed fetch degrades to a
// default-populated config so calculation never aborts on rate data.
type Cache struct {
	client  tmclient.Client
	clock   clock.Clock
	log     *zap.Logger
	ttl     time.Duration
	configs cache.Cache[string, *gpdomain.ShopConfig]
	group   singleflight.Group
}

func New(p Params) *Cache {
	ttl := p.Config.Pipeline.ShopConfigTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		client:  p.Client,
		clock:   p.Clock,
		log:     p.Log.Named("shopconfig"),
		ttl:     ttl,
		configs: cache.NewTTLCache[string, *gpdomain.ShopConfig](p.Clock),
	}
}

// Get returns the shop's config, fetching fresh rate data only when the
// cached entry is absent or expired. Never returns an error.
func (c *Cache) Get(ctx context.Context, shopID string) *gpdomain.ShopConfig {
	if cfg, ok := c.configs.Get(shopID); ok {
		return cfg
	}
	return c.refresh(ctx, shopID)
}

// Refresh bypasses the cached entry and fetches fresh data.
func (c *Cache) Refresh(ctx context.Context, shopID string) *gpdomain.ShopConfig {
	c.configs.Delete(shopID)
	return c.refresh(ctx, shopID)
}

// Invalidate drops the cached entry for a shop.
func (c *Cache) Invalidate(shopID string) {
	c.configs.Delete(shopID)
}

func (c *Cache) refresh(ctx context.Context, shopID string) *gpdomain.ShopConfig {
	value, _, _ := c.group.Do(shopID, func() (any, error) {
		return c.fetch(ctx, shopID), nil
	})
	return value.(*gpdomain.ShopConfig)
}

func (c *Cache) fetch(ctx context.Context, shopID string) *gpdomain.ShopConfig {
	now := c.clock.Now()

	employees, err := c.client.ListActiveEmployees(ctx, shopID)
	if err != nil {
		c.log.Warn("shop config fetch failed, using defaults",
			zap.String("shop_id", shopID),
			zap.Error(err),
		)
		return gpdomain.DefaultShopConfig(shopID, now)
	}

	cfg := &gpdomain.ShopConfig{
		ShopID:    shopID,
		TechRates: map[int64]int64{},
		TechNames: map[int64]string{},
		TaxRate:   gpdomain.DefaultTaxRate,
		CachedAt:  now,
	}

	var rateSum, rateCount int64
	for _, emp := range employees {
		if emp.Role != tmclient.RoleTechnician || emp.HourlyRate <= 0 {
			continue
		}
		cfg.TechRates[emp.ID] = emp.HourlyRate
		cfg.TechNames[emp.ID] = techName(emp)
		rateSum += emp.HourlyRate
		rateCount++
	}

	if rateCount > 0 {
		cfg.AvgTechRate = rateSum / rateCount
	} else {
		cfg.AvgTechRate = gpdomain.DefaultTechRateCents
	}

	c.configs.Set(shopID, cfg, c.ttl)
	return cfg
}

func techName(emp tmclient.Employee) string {
	name := emp.FirstName
	if emp.LastName != "" {
		if name != "" {
			name += " "
		}
		name += emp.LastName
	}
	return name
}

var Module = fx.Module("shopconfig",
	fx.Provide(New),
)
