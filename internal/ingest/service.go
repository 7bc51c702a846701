package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	gpservice "github.com/shopledger/shopledger/internal/gp/service"
	"github.com/shopledger/shopledger/internal/observability/metrics"
	"github.com/shopledger/shopledger/internal/runlog"
	"github.com/shopledger/shopledger/internal/shopconfig"
	"github.com/shopledger/shopledger/internal/tmclient"
	"github.com/shopledger/shopledger/internal/warehouse"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Result summarizes one ingested repair order.
type Result struct {
	ShopTMID int64
	ROTMID   int64
	Created  bool
	Jobs     int
	Parts    int
	Labor    int
	Sublets  int
	Fees     int
}

// Service pulls one repair order from the upstream system, runs the GP
// engine over it and persists the warehoused form the snapshot builder
// reads. Re-ingesting the same RO replaces its header and line items.
type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	client tmclient.Client
	shops  *shopconfig.Cache
	calc   *gpservice.Calculator
	writer warehouse.Writer
	runs   runlog.Recorder
	genID  *snowflake.Node
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Client tmclient.Client
	Shops  *shopconfig.Cache
	Calc   *gpservice.Calculator
	Writer warehouse.Writer
	Runs   runlog.Recorder
	GenID  *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{
		log:    p.Log.Named("ingest"),
		clock:  p.Clock,
		client: p.Client,
		shops:  p.Shops,
		calc:   p.Calc,
		writer: p.Writer,
		runs:   p.Runs,
		genID:  p.GenID,
	}
}

// IngestRepairOrder fetches one RO by its upstream id and writes it to the
// warehouse. The shop row is created on first contact.
func (s *Service) IngestRepairOrder(ctx context.Context, shopTMID, roTMID int64) (Result, error) {
	m := metrics.Pipeline()
	runStart := s.clock.Now()
	defer func() {
		m.ObserveRunDuration(metrics.JobIngest, s.clock.Now().Sub(runStart))
	}()

	result := Result{ShopTMID: shopTMID, ROTMID: roTMID}

	shop, err := s.writer.EnsureShop(ctx, shopTMID, "")
	if err != nil {
		m.IncRun(metrics.JobIngest, metrics.ResultError)
		return result, fmt.Errorf("ensure shop: %w", err)
	}

	runID, err := s.runs.Start(ctx, shop.ID, runlog.RunTypeIngest)
	if err != nil {
		s.log.Warn("failed to open run ledger entry", zap.Error(err))
		runID = 0
	}

	shopID := strconv.FormatInt(shopTMID, 10)
	doc, err := s.client.GetRepairOrder(ctx, shopID, roTMID)
	if err != nil {
		s.completeRun(runID, runlog.StatusFailed, result, err)
		m.IncRun(metrics.JobIngest, metrics.ResultError)
		return result, fmt.Errorf("fetch repair order %d: %w", roTMID, err)
	}

	cfg := s.shops.Get(ctx, shopID)
	authorized := s.calc.CalculateROTrueGP(*doc, cfg, true)
	potential := s.calc.CalculateROTrueGP(*doc, cfg, false)

	header := s.buildHeader(shop, doc, authorized, potential)
	created, err := s.writer.UpsertRepairOrder(ctx, header)
	if err != nil {
		s.completeRun(runID, runlog.StatusFailed, result, err)
		m.IncRun(metrics.JobIngest, metrics.ResultError)
		return result, fmt.Errorf("write repair order %d: %w", roTMID, err)
	}
	result.Created = created

	items := s.buildLineItems(shop, header, doc, cfg)
	if err := s.writer.ReplaceLineItems(ctx, shop.ID, header.ID, items); err != nil {
		s.completeRun(runID, runlog.StatusFailed, result, err)
		m.IncRun(metrics.JobIngest, metrics.ResultError)
		return result, fmt.Errorf("write line items for %d: %w", roTMID, err)
	}
	result.Jobs = len(items.Jobs)
	result.Parts = len(items.Parts)
	result.Labor = len(items.Labor)
	result.Sublets = len(items.Sublets)
	result.Fees = len(items.Fees)

	if created {
		m.AddUnits(metrics.JobIngest, metrics.ResultCreated, 1)
	} else {
		m.AddUnits(metrics.JobIngest, metrics.ResultUpdated, 1)
	}
	m.IncRun(metrics.JobIngest, runlog.StatusCompleted)
	s.completeRun(runID, runlog.StatusCompleted, result, nil)

	s.log.Info("repair order ingested",
		zap.Int64("shop_id", shopTMID),
		zap.Int64("ro_id", roTMID),
		zap.Bool("created", created),
		zap.Int("jobs", result.Jobs),
	)

	return result, nil
}

func (s *Service) buildHeader(shop *warehouse.Shop, doc *gpdomain.RepairOrder, authorized, potential gpdomain.ROTrueGP) *warehouse.RepairOrder {
	status := "UNKNOWN"
	if doc.Status != nil && doc.Status.Name != "" {
		status = strings.ToUpper(doc.Status.Name)
	}

	header := &warehouse.RepairOrder{
		ShopID:        shop.ID,
		TMID:          doc.ID,
		RONumber:      doc.RepairOrderNumber,
		Status:        status,
		PostedDate:    parseDate(doc.PostedDate),
		CompletedDate: parseDate(doc.CompletedDate),

		AuthorizedRevenue:  authorized.TotalRetail,
		AuthorizedCost:     authorized.TotalCost,
		AuthorizedProfit:   authorized.GrossProfit,
		AuthorizedJobCount: authorized.AuthorizedJobCount,
		AuthorizedTotal:    authorized.TotalRetail,
		AuthorizedTax:      authorized.TaxTotal,

		PotentialTotal:    potential.TotalRetail,
		PotentialJobCount: potential.TotalJobCount,
		PotentialTax:      potential.TaxTotal,
	}
	if authorized.TotalRetail > 0 {
		gp := round2(authorized.MarginPct)
		header.AuthorizedGPPercent = &gp
	}
	return header
}

// buildLineItems converts the upstream document into warehoused rows with
// costs already resolved: per-unit part costs from the normalizer, labor
// costs from the rate fallback chain.
func (s *Service) buildLineItems(shop *warehouse.Shop, header *warehouse.RepairOrder, doc *gpdomain.RepairOrder, cfg *gpdomain.ShopConfig) warehouse.LineItems {
	var items warehouse.LineItems

	for _, job := range doc.Jobs {
		jobGP := s.calc.CalculateJobGP(job, cfg)

		row := warehouse.Job{
			ID:            s.genID.Generate(),
			ShopID:        shop.ID,
			RepairOrderID: header.ID,
			TMID:          job.ID,
			Name:          jobGP.JobName,
			Authorized:    job.Authorized,
		}
		items.Jobs = append(items.Jobs, row)

		for _, pp := range jobGP.PartsDetail {
			items.Parts = append(items.Parts, warehouse.JobPart{
				ID:            s.genID.Generate(),
				ShopID:        shop.ID,
				RepairOrderID: header.ID,
				JobID:         row.ID,
				TMID:          pp.PartID,
				Retail:        pp.RetailPerUnit,
				Cost:          pp.CostPerUnit,
				Quantity:      pp.Quantity,
				Total:         pp.TotalRetail,
			})
		}

		for _, lp := range jobGP.LaborDetail {
			items.Labor = append(items.Labor, warehouse.JobLabor{
				ID:             s.genID.Generate(),
				ShopID:         shop.ID,
				RepairOrderID:  header.ID,
				JobID:          row.ID,
				TMID:           lp.LaborID,
				Hours:          lp.Hours,
				Rate:           lp.Rate,
				Total:          lp.TotalRetail,
				LaborCost:      lp.TotalCost,
				TechnicianName: lp.TechName,
			})
		}

		for _, sp := range jobGP.SubletDetail {
			items.Sublets = append(items.Sublets, warehouse.JobSublet{
				ID:            s.genID.Generate(),
				ShopID:        shop.ID,
				RepairOrderID: header.ID,
				JobID:         row.ID,
				TMID:          sp.SubletID,
				Retail:        sp.Retail,
				Cost:          sp.Cost,
			})
		}

		for _, fee := range job.Fees {
			detail := gpservice.CalculateFeeDetail(fee, jobGP.Subtotal)
			items.Fees = append(items.Fees, warehouse.JobFee{
				ID:            s.genID.Generate(),
				ShopID:        shop.ID,
				RepairOrderID: header.ID,
				JobID:         row.ID,
				Total:         detail.Amount,
			})
		}
	}

	return items
}

func (s *Service) completeRun(runID snowflake.ID, status string, result Result, cause error) {
	if runID == 0 {
		return
	}
	var details []runlog.ErrorDetail
	if cause != nil {
		details = append(details, runlog.ErrorDetail{
			Unit:  fmt.Sprintf("ro:%d", result.ROTMID),
			Error: cause.Error(),
		})
	}
	created, updated := 0, 0
	if result.Created {
		created = 1
	} else if status == runlog.StatusCompleted {
		updated = 1
	}
	ledgerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Complete(ledgerCtx, runID, status, created, updated, 0, details); err != nil {
		s.log.Warn("failed to close run ledger entry", zap.Error(err))
	}
}

// parseDate keeps the date portion of an upstream ISO timestamp.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	if idx := strings.IndexByte(value, 'T'); idx > 0 {
		value = value[:idx]
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
