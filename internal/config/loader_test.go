package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/spotter/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	for _, key := range []string{
		"SPOTTER_CONFIG",
		"SPOTTER_ADDR",
		"SPOTTER_LOG_LEVEL",
		"SPOTTER_DEFAULT_BASELINE_MS",
		"SPOTTER_K_FACTOR",
		"SPOTTER_FAILURE_K_FACTOR",
		"SPOTTER_MISS_COOLDOWN_MS",
		"SPOTTER_MAX_MISSES",
		"SPOTTER_WORKER_COUNT",
		"SPOTTER_MAX_LEADERBOARD_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DefaultBaselineMS, convey.ShouldEqual, 180_000)
				convey.So(cfg.KFactor, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SPOTTER_ADDR", ":8080")
			_ = os.Setenv("SPOTTER_K_FACTOR", "24")
			_ = os.Setenv("SPOTTER_MISS_COOLDOWN_MS", "100")
			_ = os.Setenv("SPOTTER_MAX_MISSES", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.KFactor, convey.ShouldEqual, 24)
				convey.So(cfg.MissCooldownMS, convey.ShouldEqual, 100)
				convey.So(cfg.MaxMisses, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "spotter.yaml")
			yaml := "addr: \":7070\"\ndefault_baseline_ms: 120000\nmax_misses: 12\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("SPOTTER_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.DefaultBaselineMS, convey.ShouldEqual, 120_000)
				convey.So(cfg.MaxMisses, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("SPOTTER_MAX_MISSES", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then Load reports an invalid config", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
