package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BUNDLE_SIZE", "")
	t.Setenv("ORACLE_TIMEOUT_SECONDS", "")
	t.Setenv("EVENT_LOCK_TTL_SECONDS", "")
	t.Setenv("EVENT_REPLAY_TTL_HOURS", "")
	c := Load()
	if c.BundleSize != 3 {
		t.Errorf("BundleSize = %d, want 3", c.BundleSize)
	}
	if c.MaxPhotoAge != 15*time.Minute {
		t.Errorf("MaxPhotoAge = %s, want 15m", c.MaxPhotoAge)
	}
	if c.GeofenceMeters != 200 {
		t.Errorf("GeofenceMeters = %v, want 200", c.GeofenceMeters)
	}
	if c.OracleTimeout != 300*time.Second {
		t.Errorf("OracleTimeout = %s, want 300s", c.OracleTimeout)
	}
	if c.EventLockTTL != 10*time.Minute || c.EventReplayTTL != 24*time.Hour {
		t.Errorf("event guard ttls = %s/%s, want 10m/24h", c.EventLockTTL, c.EventReplayTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BUNDLE_SIZE", "5")
	t.Setenv("GEOFENCE_METERS", "150.5")
	t.Setenv("BILL_REQUIRE_GPS", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	c := Load()
	if c.BundleSize != 5 || c.GeofenceMeters != 150.5 || !c.BillRequireGPS {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.RedisDB != 0 {
		t.Fatalf("bad REDIS_DB should fall back to 0, got %d", c.RedisDB)
	}
}

func valid() *Config {
	return &Config{
		AppPort: "8080", DBDriver: "mysql",
		MySQLHost: "localhost", MySQLPort: "3306", MySQLDB: "d", MySQLUser: "u",
		GeminiAPIKey: "k", BundleSize: 3, OracleTimeout: time.Minute, StorageScheme: "gs",
	}
}

func TestValidate(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"MYSQL":          func(c *Config) { c.MySQLHost = "" },
		"POSTGRES_DSN":   func(c *Config) { c.DBDriver = "postgres" },
		"DB_DRIVER":      func(c *Config) { c.DBDriver = "mongo" },
		"GEMINI_API_KEY": func(c *Config) { c.GeminiAPIKey = "" },
		"BUNDLE_SIZE":    func(c *Config) { c.BundleSize = 0 },
		"STORAGE_SCHEME": func(c *Config) { c.StorageScheme = "ftp" },
	}
	for want, mutate := range cases {
		c := valid()
		mutate(c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%s: got err %v", want, err)
		}
	}
}

func TestDSN(t *testing.T) {
	c := valid()
	if got := c.DSN(); !strings.HasPrefix(got, "u:@tcp(localhost:3306)/d?parseTime=true") {
		t.Fatalf("mysql dsn = %q", got)
	}
	c.DBDriver, c.PostgresDSN = "postgres", "host=pg"
	if c.DSN() != "host=pg" {
		t.Fatalf("postgres dsn = %q", c.DSN())
	}
}
