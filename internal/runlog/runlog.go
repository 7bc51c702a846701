package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run types written by the pipeline.
const (
	RunTypeIngest       = "repair_orders"
	RunTypeSnapshots    = "ro_snapshots"
	RunTypeDailyMetrics = "daily_metrics"
)

// Run is one row in the sync_runs ledger. Every batch invocation opens a
// running row and closes it with its result summary, successful or not.
type Run struct {
	ID          snowflake.ID   `gorm:"column:id;primaryKey"`
	ShopID      snowflake.ID   `gorm:"column:shop_id"`
	RunType     string         `gorm:"column:run_type"`
	Status      string         `gorm:"column:status"`
	StartedAt   time.Time      `gorm:"column:started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
	DurationMS  int64          `gorm:"column:duration_ms"`
	Created     int            `gorm:"column:records_created"`
	Updated     int            `gorm:"column:records_updated"`
	Skipped     int            `gorm:"column:records_skipped"`
	ErrorCount  int            `gorm:"column:error_count"`
	ErrorDetail datatypes.JSON `gorm:"column:error_details"`
}

func (Run) TableName() string { return "sync_runs" }

// Recorder writes the run ledger.
type Recorder interface {
	Start(ctx context.Context, shopID snowflake.ID, runType string) (snowflake.ID, error)
	Complete(ctx context.Context, runID snowflake.ID, status string, created, updated, skipped int, errDetails []ErrorDetail) error
}

// ErrorDetail is one recorded per-unit failure.
type ErrorDetail struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
}

type recorder struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
}

func NewRecorder(p Params) Recorder {
	return &recorder{
		db:    p.DB,
		log:   p.Log.Named("runlog"),
		clock: p.Clock,
		genID: p.GenID,
	}
}

func (r *recorder) Start(ctx context.Context, shopID snowflake.ID, runType string) (snowflake.ID, error) {
	id := r.genID.Generate()
	now := r.clock.Now()
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO sync_runs (id, shop_id, run_type, status, started_at, duration_ms, records_created, records_updated, records_skipped, error_count)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0)`,
		id,
		shopID,
		runType,
		StatusRunning,
		now,
	).Error
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *recorder) Complete(ctx context.Context, runID snowflake.ID, status string, created, updated, skipped int, errDetails []ErrorDetail) error {
	var startedAt time.Time
	if err := r.db.WithContext(ctx).Raw(
		`SELECT started_at FROM sync_runs WHERE id = ?`,
		runID,
	).Scan(&startedAt).Error; err != nil {
		return err
	}

	now := r.clock.Now()
	var detail datatypes.JSON
	if len(errDetails) > 0 {
		encoded, err := json.Marshal(errDetails)
		if err != nil {
			r.log.Warn("failed to encode run error details", zap.Error(err))
		} else {
			detail = datatypes.JSON(encoded)
		}
	}

	return r.db.WithContext(ctx).Exec(
		`UPDATE sync_runs
		 SET status = ?, completed_at = ?, duration_ms = ?,
		     records_created = ?, records_updated = ?, records_skipped = ?,
		     error_count = ?, error_details = ?
		 WHERE id = ?`,
		status,
		now,
		now.Sub(startedAt).Milliseconds(),
		created,
		updated,
		skipped,
		len(errDetails),
		detail,
		runID,
	).Error
}

var Module = fx.Module("runlog",
	fx.Provide(NewRecorder),
)
