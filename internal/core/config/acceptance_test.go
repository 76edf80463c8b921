package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

// TestAcceptanceCriteria verifies configuration layering end to end.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		path := writeTempConfig(t, `server:
  host: "localhost"
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path, nil)
		if err == nil {
			t.Fatal("AC1 FAIL: Expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use WAYPOINT_HMAC_SECRET environment variable)" {
			t.Fatalf("AC1 FAIL: Wrong error message: %v", err)
		}
	})

	t.Run("AC2: Secret in environment does not trip the config file check", func(t *testing.T) {
		os.Setenv("WAYPOINT_HMAC_SECRET", testSecretID+":"+testSecretB64)
		defer os.Unsetenv("WAYPOINT_HMAC_SECRET")

		if _, err := LoadConfig("", nil); err != nil {
			t.Fatalf("AC2 FAIL: LoadConfig error: %v", err)
		}
	})

	t.Run("AC3: flags > env > file > defaults", func(t *testing.T) {
		path := writeTempConfig(t, `server:
  port: 9091
  metrics_port: 0
engine:
  program_cache_size: 7
database:
  url: "sqlite:///tmp/from-file.db"
`)
		os.Setenv("WAYPOINT_SERVER_PORT", "8080")
		defer os.Unsetenv("WAYPOINT_SERVER_PORT")

		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Fatalf("AC3 FAIL: Environment should override config file. Expected 8080, got %d", cfg.Server.Port)
		}
		if cfg.Engine.ProgramCacheSize != 7 || cfg.Server.MetricsPort != 0 {
			t.Fatalf("AC3 FAIL: config file values not applied: %+v", cfg)
		}
		if cfg.Engine.ResultCacheSize != 4096 {
			t.Fatalf("AC3 FAIL: default not applied, got %d", cfg.Engine.ResultCacheSize)
		}

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("db-url", "", "")
		if err := flags.Parse([]string{"--db-url", "postgres://localhost/waypoint"}); err != nil {
			t.Fatal(err)
		}
		cfg, err = LoadConfig(path, flags)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.Database.URL != "postgres://localhost/waypoint" {
			t.Fatalf("AC3 FAIL: flag should override config file, got %s", cfg.Database.URL)
		}
	})
}
