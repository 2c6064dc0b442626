package config_test

import (
	"runtime"
	"testing"

	"github.com/okian/spotter/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DatabaseURL, convey.ShouldBeEmpty)
			convey.So(cfg.DefaultBaselineMS, convey.ShouldEqual, 180_000)
			convey.So(cfg.BaselineImageLimit, convey.ShouldEqual, 200)
			convey.So(cfg.BaselineGlobalLimit, convey.ShouldEqual, 500)
			convey.So(cfg.BaselineMinSamples, convey.ShouldEqual, 10)
			convey.So(cfg.KFactor, convey.ShouldEqual, 20)
			convey.So(cfg.FailureKFactor, convey.ShouldEqual, 16)
			convey.So(cfg.MissCooldownMS, convey.ShouldEqual, 250)
			convey.So(cfg.MaxMisses, convey.ShouldEqual, 10)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
		})
	})
}
