package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	LogLevel string

	DBDriver    string
	MySQLHost   string
	MySQLPort   string
	MySQLDB     string
	MySQLUser   string
	MySQLPass   string
	PostgresDSN string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	EventLockTTL   time.Duration
	EventReplayTTL time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OracleTimeout time.Duration

	BundleSize             int
	MaxPhotoAge            time.Duration
	GeofenceMeters         float64
	BillRequireGPS         bool
	LowConfidenceThreshold int

	StorageScheme  string // "gs" or "s3"
	StorageBucket  string // for entries recorded without their upload bucket
	S3PresignTTL   time.Duration
	AWSRegion      string
	AWSEndpointURL string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getfloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getbool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// Load reads the environment, after merging a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:  getenv("APP_PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBDriver:    getenv("DB_DRIVER", "mysql"),
		MySQLHost:   getenv("MYSQL_HOST", "mysql"),
		MySQLPort:   getenv("MYSQL_PORT", "3306"),
		MySQLDB:     getenv("MYSQL_DB", "collateral"),
		MySQLUser:   getenv("MYSQL_USER", "collateral"),
		MySQLPass:   getenv("MYSQL_PASS", "collateral"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		RedisAddr:      getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getint("REDIS_DB", 0),
		EventLockTTL:   time.Duration(getint("EVENT_LOCK_TTL_SECONDS", 600)) * time.Second,
		EventReplayTTL: time.Duration(getint("EVENT_REPLAY_TTL_HOURS", 24)) * time.Hour,

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OracleTimeout: time.Duration(getint("ORACLE_TIMEOUT_SECONDS", 300)) * time.Second,

		BundleSize:             getint("BUNDLE_SIZE", 3),
		MaxPhotoAge:            time.Duration(getint("MAX_PHOTO_AGE_MINUTES", 15)) * time.Minute,
		GeofenceMeters:         getfloat("GEOFENCE_METERS", 200),
		BillRequireGPS:         getbool("BILL_REQUIRE_GPS", false),
		LowConfidenceThreshold: getint("LOW_CONFIDENCE_THRESHOLD", 50),

		StorageScheme:  getenv("STORAGE_SCHEME", "gs"),
		StorageBucket:  os.Getenv("STORAGE_BUCKET"),
		S3PresignTTL:   time.Duration(getint("S3_PRESIGN_TTL_SECONDS", 3600)) * time.Second,
		AWSRegion:      getenv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
	}
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("missing GEMINI_API_KEY")
	}
	if c.BundleSize < 1 {
		return fmt.Errorf("BUNDLE_SIZE must be positive, got %d", c.BundleSize)
	}
	if c.OracleTimeout <= 0 {
		return errors.New("ORACLE_TIMEOUT_SECONDS must be positive")
	}
	switch c.StorageScheme {
	case "gs", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_SCHEME %q", c.StorageScheme)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.PostgresDSN
	}
	return c.MySQLDSN()
}
