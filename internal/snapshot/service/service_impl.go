package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/observability/metrics"
	"github.com/shopledger/shopledger/internal/runlog"
	"github.com/shopledger/shopledger/internal/snapshot/domain"
	"github.com/shopledger/shopledger/internal/warehouse"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// varianceThresholdPct is the computed-vs-reported GP% delta above which
// the variance reason is populated for investigation.
const varianceThresholdPct = 0.5

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Warehouse warehouse.Repository
	Snapshots domain.Repository
	Runs      runlog.Recorder
	Config    Config `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	warehouse warehouse.Repository
	snapshots domain.Repository
	runs      runlog.Recorder
	cfg       Config
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("snapshot.builder"),
		clock:     p.Clock,
		warehouse: p.Warehouse,
		snapshots: p.Snapshots,
		runs:      p.Runs,
		cfg:       p.Config.withDefaults(),
	}
}

// BuildSnapshotsForPeriod builds one snapshot per qualifying RO in
// [start, end] (inclusive calendar dates). ROs are processed concurrently;
// a per-RO failure is recorded and skipped, never fatal. A missing shop
// aborts the run.
func (s *Service) BuildSnapshotsForPeriod(ctx context.Context, shopTMID int64, start, end time.Time) (domain.BuildResult, error) {
	m := metrics.Pipeline()
	runStart := s.clock.Now()
	defer func() {
		m.ObserveRunDuration(metrics.JobSnapshots, s.clock.Now().Sub(runStart))
	}()

	result := domain.BuildResult{ShopTMID: shopTMID}

	shop, err := s.warehouse.FindShopByTMID(ctx, shopTMID)
	if err != nil {
		m.IncRun(metrics.JobSnapshots, metrics.ResultError)
		return result, err
	}
	if shop == nil {
		m.IncRun(metrics.JobSnapshots, metrics.ResultError)
		return result, fmt.Errorf("%w: %d", domain.ErrShopNotFound, shopTMID)
	}

	runID, err := s.runs.Start(ctx, shop.ID, runlog.RunTypeSnapshots)
	if err != nil {
		s.log.Warn("failed to open run ledger entry", zap.Error(err))
		runID = 0
	}

	windowStart := dateOnly(start)
	windowEnd := dateOnly(end).Add(24 * time.Hour)

	ros, err := s.warehouse.QualifyingRepairOrders(ctx, shop.ID, windowStart, windowEnd)
	if err != nil {
		s.completeRun(runID, runlog.StatusFailed, result)
		m.IncRun(metrics.JobSnapshots, metrics.ResultError)
		return result, err
	}
	result.QualifyingROs = len(ros)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)

	for _, ro := range ros {
		// Cancellation stops issuing new per-RO work; workers already
		// running finish on their own detached contexts so no snapshot is
		// left half-written.
		if ctx.Err() != nil {
			break
		}

		ro := ro
		g.Go(func() error {
			rowCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RowTimeout)
			defer cancel()

			snap, err := s.buildSnapshot(rowCtx, shop, ro)
			var created bool
			if err == nil {
				created, err = s.snapshots.Upsert(rowCtx, s.db, snap)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors++
				if len(result.ErrorDetails) < s.cfg.MaxErrorDetail {
					result.ErrorDetails = append(result.ErrorDetails, domain.ErrorDetail{
						ROID:  ro.TMID,
						Error: err.Error(),
					})
				}
				s.log.Warn("failed to build snapshot",
					zap.Int64("ro_id", ro.TMID),
					zap.Error(err),
				)
				return nil
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	m.AddUnits(metrics.JobSnapshots, metrics.ResultCreated, result.Created)
	m.AddUnits(metrics.JobSnapshots, metrics.ResultUpdated, result.Updated)
	m.AddUnits(metrics.JobSnapshots, metrics.ResultError, result.Errors)
	m.IncRun(metrics.JobSnapshots, runStatus(ctx))

	s.completeRun(runID, runStatus(ctx), result)

	s.log.Info("snapshot build finished",
		zap.Int64("shop_id", shopTMID),
		zap.Int("qualifying_ros", result.QualifyingROs),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
	)

	return result, ctx.Err()
}

func (s *Service) buildSnapshot(ctx context.Context, shop *warehouse.Shop, ro warehouse.RepairOrder) (*domain.Snapshot, error) {
	items, err := s.warehouse.LineItems(ctx, shop.ID, ro.ID)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}

	snapDate, trigger := deriveSnapshot(ro, s.clock.Now())
	breakdown := categoryBreakdown(items)

	status := ro.Status
	if status == "" {
		status = "UNKNOWN"
	}

	snap := &domain.Snapshot{
		ShopID:          shop.ID,
		RepairOrderID:   ro.ID,
		TMRepairOrderID: ro.TMID,
		SnapshotDate:    snapDate,
		SnapshotTrigger: trigger,
		ROStatus:        status,
		RONumber:        ro.RONumber,

		CustomerName:       s.warehouse.CustomerName(ctx, ro.CustomerID),
		VehicleDescription: s.warehouse.VehicleDescription(ctx, ro.VehicleID),
		AdvisorName:        s.warehouse.AdvisorName(ctx, ro.ServiceAdvisorID),

		AuthorizedRevenue:   ro.AuthorizedRevenue,
		AuthorizedCost:      ro.AuthorizedCost,
		AuthorizedProfit:    ro.AuthorizedProfit,
		AuthorizedGPPercent: ro.AuthorizedGPPercent,
		AuthorizedJobCount:  ro.AuthorizedJobCount,

		PartsRevenue:  breakdown.partsRevenue,
		PartsCost:     breakdown.partsCost,
		PartsProfit:   breakdown.partsRevenue - breakdown.partsCost,
		LaborRevenue:  breakdown.laborRevenue,
		LaborCost:     breakdown.laborCost,
		LaborProfit:   breakdown.laborRevenue - breakdown.laborCost,
		LaborHours:    breakdown.laborHours,
		SubletRevenue: breakdown.subletRevenue,
		SubletCost:    breakdown.subletCost,
		FeesTotal:     breakdown.feesTotal,
		TaxTotal:      ro.AuthorizedTax,

		PotentialRevenue:  ro.PotentialTotal,
		PotentialJobCount: ro.PotentialJobCount,

		TMReportedGPPercent: ro.AuthorizedGPPercent,
		CalculationMethod:   domain.CalculationMethodTrueGP,
	}

	applyVariance(snap, ro)

	return snap, nil
}

// deriveSnapshot resolves the snapshot date and trigger: the posted date
// wins, then the completed date, then today with a manual trigger.
func deriveSnapshot(ro warehouse.RepairOrder, now time.Time) (time.Time, domain.Trigger) {
	switch {
	case ro.PostedDate != nil:
		return dateOnly(*ro.PostedDate), domain.TriggerPosted
	case ro.CompletedDate != nil:
		return dateOnly(*ro.CompletedDate), domain.TriggerCompleted
	default:
		return dateOnly(now), domain.TriggerManual
	}
}

type breakdown struct {
	partsRevenue  int64
	partsCost     int64
	laborRevenue  int64
	laborCost     int64
	laborHours    decimal.Decimal
	subletRevenue int64
	subletCost    int64
	feesTotal     int64
}

// categoryBreakdown re-derives category totals from persisted line items of
// authorized jobs only. Part cost is per unit and multiplied by quantity;
// labor cost was already resolved at ingestion time.
func categoryBreakdown(items warehouse.LineItems) breakdown {
	authorized := items.AuthorizedJobIDs()
	var b breakdown

	for _, part := range items.Parts {
		if _, ok := authorized[part.JobID]; !ok {
			continue
		}
		b.partsRevenue += part.Total
		qty := part.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		b.partsCost += decimal.NewFromInt(part.Cost).Mul(qty).IntPart()
	}

	for _, labor := range items.Labor {
		if _, ok := authorized[labor.JobID]; !ok {
			continue
		}
		b.laborRevenue += labor.Total
		b.laborCost += labor.LaborCost
		b.laborHours = b.laborHours.Add(labor.Hours)
	}

	for _, sublet := range items.Sublets {
		if _, ok := authorized[sublet.JobID]; !ok {
			continue
		}
		b.subletRevenue += sublet.Retail
		b.subletCost += sublet.Cost
	}

	for _, fee := range items.Fees {
		if _, ok := authorized[fee.JobID]; !ok {
			continue
		}
		b.feesTotal += fee.Total
	}

	return b
}

// applyVariance compares the GP% recomputed from authorized totals against
// the upstream-reported figure and records the delta when it exceeds the
// threshold.
func applyVariance(snap *domain.Snapshot, ro warehouse.RepairOrder) {
	if ro.AuthorizedRevenue <= 0 {
		return
	}
	ourGP := round2(float64(ro.AuthorizedProfit) / float64(ro.AuthorizedRevenue) * 100)
	if ro.AuthorizedGPPercent == nil {
		return
	}
	variance := round2(ourGP - *ro.AuthorizedGPPercent)
	snap.VariancePercent = &variance
	if math.Abs(variance) > varianceThresholdPct {
		reason := fmt.Sprintf("Calculated %.2f%%, TM reported %.2f%%", ourGP, *ro.AuthorizedGPPercent)
		snap.VarianceReason = &reason
	}
}

func (s *Service) completeRun(runID snowflake.ID, status string, result domain.BuildResult) {
	if runID == 0 {
		return
	}
	details := make([]runlog.ErrorDetail, 0, len(result.ErrorDetails))
	for _, d := range result.ErrorDetails {
		details = append(details, runlog.ErrorDetail{
			Unit:  fmt.Sprintf("ro:%d", d.ROID),
			Error: d.Error,
		})
	}
	ledgerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Complete(ledgerCtx, runID, status, result.Created, result.Updated, 0, details); err != nil {
		s.log.Warn("failed to close run ledger entry", zap.Error(err))
	}
}

func runStatus(ctx context.Context) string {
	if ctx.Err() != nil {
		return runlog.StatusFailed
	}
	return runlog.StatusCompleted
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
