package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	Logger LoggerConfig

	TM TMConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Pipeline PipelineConfig

	Sync SyncConfig
}

type LoggerConfig struct {
	Level string
}

// TMConfig points at the upstream shop-management API.
type TMConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PipelineConfig tunes the snapshot/rollup batch runs.
type PipelineConfig struct {
	Workers        int
	RowTimeout     time.Duration
	ShopConfigTTL  time.Duration
	MaxErrorDetail int
}

// SyncConfig scopes a batch invocation. Dates are YYYY-MM-DD; when absent
// the window is the last DaysBack days ending today. ROTMID, when set,
// ingests that single repair order from the upstream API before the
// snapshot build.
type SyncConfig struct {
	ShopTMID  int64
	ROTMID    int64
	StartDate string
	EndDate   string
	DaysBack  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "shopledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		TM: TMConfig{
			BaseURL: strings.TrimRight(getenv("TM_BASE_URL", "https://shop-ws.example.com"), "/"),
			APIKey:  strings.TrimSpace(getenv("TM_API_KEY", "")),
			Timeout: getenvDuration("TM_TIMEOUT", 30*time.Second),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "shopledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		Pipeline: PipelineConfig{
			Workers:        getenvInt("PIPELINE_WORKERS", 8),
			RowTimeout:     getenvDuration("PIPELINE_ROW_TIMEOUT", 30*time.Second),
			ShopConfigTTL:  getenvDuration("SHOP_CONFIG_TTL", 5*time.Minute),
			MaxErrorDetail: getenvInt("PIPELINE_MAX_ERROR_DETAIL", 10),
		},
		Sync: SyncConfig{
			ShopTMID:  getenvInt64("SYNC_SHOP_TM_ID", 0),
			ROTMID:    getenvInt64("SYNC_RO_TM_ID", 0),
			StartDate: getenv("SYNC_START_DATE", ""),
			EndDate:   getenv("SYNC_END_DATE", ""),
			DaysBack:  getenvInt("SYNC_DAYS_BACK", 3),
		},
	}
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
