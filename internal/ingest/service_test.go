package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	gpservice "github.com/shopledger/shopledger/internal/gp/service"
	"github.com/shopledger/shopledger/internal/runlog"
	"github.com/shopledger/shopledger/internal/shopconfig"
	"github.com/shopledger/shopledger/internal/tmclient"
	"github.com/shopledger/shopledger/internal/warehouse"
	"github.com/shopledger/shopledger/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubTM struct {
	ro        *gpdomain.RepairOrder
	roErr     error
	employees []tmclient.Employee
}

func (s *stubTM) GetRepairOrder(ctx context.Context, shopID string, roID int64) (*gpdomain.RepairOrder, error) {
	if s.roErr != nil {
		return nil, s.roErr
	}
	return s.ro, nil
}

func (s *stubTM) ListActiveEmployees(ctx context.Context, shopID string) ([]tmclient.Employee, error) {
	return s.employees, nil
}

type ingestEnv struct {
	db  *gorm.DB
	svc *Service
}

func newIngestEnv(t *testing.T, tm *stubTM) *ingestEnv {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&warehouse.Shop{},
		&warehouse.RepairOrder{},
		&warehouse.Job{},
		&warehouse.JobPart{},
		&warehouse.JobLabor{},
		&warehouse.JobSublet{},
		&warehouse.JobFee{},
		&runlog.Run{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	svc := NewService(Params{
		Log:    log,
		Clock:  clk,
		Client: tm,
		Shops:  shopconfig.New(shopconfig.Params{Client: tm, Clock: clk, Log: log}),
		Calc:   gpservice.NewCalculator(gpservice.Params{Log: log}),
		Writer: warehouse.NewWriter(warehouse.WriterParams{DB: gdb, Clock: clk, GenID: node}),
		Runs:   runlog.NewRecorder(runlog.Params{DB: gdb, Log: log, Clock: clk, GenID: node}),
		GenID:  node,
	})

	return &ingestEnv{db: gdb, svc: svc}
}

func testDocument() *gpdomain.RepairOrder {
	return &gpdomain.RepairOrder{
		ID:                9001,
		RepairOrderNumber: 1042,
		Status:            &gpdomain.ROStatus{ID: 5, Name: "Posted"},
		PostedDate:        "2025-06-10T14:30:00Z",
		Tax:               2000,
		Jobs: []gpdomain.Job{
			{
				ID:         1,
				Name:       "Brakes",
				Authorized: true,
				Parts: []gpdomain.Part{
					{ID: 11, Quantity: decimal.NewFromInt(2), Cost: 3000, Retail: 6000},
				},
				Labor: []gpdomain.LaborEntry{
					{ID: 21, Hours: decimal.RequireFromString("1.5"), Rate: 12000,
						Technician: &gpdomain.Technician{ID: 101, HourlyRate: 3000}},
				},
			},
			{
				ID:         2,
				Name:       "Declined Work",
				Authorized: false,
				Parts: []gpdomain.Part{
					{ID: 12, Quantity: decimal.NewFromInt(1), Cost: 50000, Retail: 90000},
				},
			},
		},
	}
}

func TestIngestRepairOrder(t *testing.T) {
	env := newIngestEnv(t, &stubTM{ro: testDocument()})

	result, err := env.svc.IngestRepairOrder(context.Background(), 42, 9001)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 2, result.Jobs)
	assert.Equal(t, 2, result.Parts)
	assert.Equal(t, 1, result.Labor)

	// Shop row is created on first contact.
	repo := warehouse.NewRepository(warehouse.Params{DB: env.db})
	shop, err := repo.FindShopByTMID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, shop)

	var header warehouse.RepairOrder
	require.NoError(t, env.db.Raw(
		`SELECT * FROM repair_orders WHERE shop_id = ? AND tm_id = ?`, shop.ID, int64(9001),
	).Scan(&header).Error)

	assert.Equal(t, int64(1042), header.RONumber)
	assert.Equal(t, "POSTED", header.Status)
	require.NotNil(t, header.PostedDate)
	assert.Equal(t, "2025-06-10", header.PostedDate.UTC().Format("2006-01-02"))
	assert.Nil(t, header.CompletedDate)

	// Authorized: parts 12000 + labor 18000 = 30000 retail,
	// cost 6000 + 4500 = 10500.
	assert.Equal(t, int64(30000), header.AuthorizedRevenue)
	assert.Equal(t, int64(10500), header.AuthorizedCost)
	assert.Equal(t, int64(19500), header.AuthorizedProfit)
	assert.Equal(t, 1, header.AuthorizedJobCount)
	require.NotNil(t, header.AuthorizedGPPercent)
	assert.InDelta(t, 65.0, *header.AuthorizedGPPercent, 0.001)
	assert.Equal(t, int64(2000), header.AuthorizedTax)

	// Potential includes the declined job's 90000 part.
	assert.Equal(t, int64(120000), header.PotentialTotal)
	assert.Equal(t, 2, header.PotentialJobCount)

	items, err := repo.LineItems(context.Background(), shop.ID, header.ID)
	require.NoError(t, err)
	assert.Len(t, items.Jobs, 2)
	assert.Len(t, items.Parts, 2)
	require.Len(t, items.Labor, 1)
	assert.Equal(t, int64(18000), items.Labor[0].Total)
	assert.Equal(t, int64(4500), items.Labor[0].LaborCost)
	assert.Len(t, items.AuthorizedJobIDs(), 1)
}

func TestIngestRepairOrderIdempotent(t *testing.T) {
	tm := &stubTM{ro: testDocument()}
	env := newIngestEnv(t, tm)

	_, err := env.svc.IngestRepairOrder(context.Background(), 42, 9001)
	require.NoError(t, err)

	// Second ingest after the declined job got authorized upstream.
	tm.ro.Jobs[1].Authorized = true
	result, err := env.svc.IngestRepairOrder(context.Background(), 42, 9001)
	require.NoError(t, err)
	assert.False(t, result.Created)

	var roCount, jobCount int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM repair_orders`).Scan(&roCount).Error)
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM jobs`).Scan(&jobCount).Error)
	assert.Equal(t, int64(1), roCount)
	assert.Equal(t, int64(2), jobCount)

	var header warehouse.RepairOrder
	require.NoError(t, env.db.Raw(`SELECT * FROM repair_orders`).Scan(&header).Error)
	assert.Equal(t, 2, header.AuthorizedJobCount)
	assert.Equal(t, int64(120000), header.AuthorizedRevenue)
}

func TestIngestRepairOrderFetchFailure(t *testing.T) {
	env := newIngestEnv(t, &stubTM{roErr: errors.New("upstream down")})

	_, err := env.svc.IngestRepairOrder(context.Background(), 42, 9001)
	require.Error(t, err)

	var run runlog.Run
	require.NoError(t, env.db.Raw(
		`SELECT * FROM sync_runs WHERE run_type = ?`, runlog.RunTypeIngest,
	).Scan(&run).Error)
	assert.Equal(t, runlog.StatusFailed, run.Status)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestParseDate(t *testing.T) {
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("garbage"))

	got := parseDate("2025-06-10T14:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), *got)

	got = parseDate("2025-06-10")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), *got)
}
