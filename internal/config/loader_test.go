package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/f3peakcity/f3-bot/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.PipelineTargetCategory, convey.ShouldEqual, "1stf")
			convey.So(cfg.PipelineDefaultVenue, convey.ShouldEqual, "1stf")
			convey.So(cfg.SinkAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.PersonTable, convey.ShouldEqual, "__PROCESSED_PAX")
				convey.So(cfg.EventTable, convey.ShouldEqual, "__PROCESSED_AO")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BACKBLAST_ADDR", ":8080")
			_ = os.Setenv("BACKBLAST_QUEUE_SIZE", "500")
			_ = os.Setenv("BACKBLAST_STORE_DRIVER", "sqlite")
			_ = os.Setenv("BACKBLAST_STORE_DSN", "/tmp/backblast.db")
			_ = os.Setenv("BACKBLAST_SINK_BACKOFF", "2s")
			_ = os.Setenv("BACKBLAST_PIPELINE_TARGET_CATEGORY", "3rdf")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "/tmp/backblast.db")
				convey.So(cfg.SinkBackoff, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.PipelineTargetCategory, convey.ShouldEqual, "3rdf")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
# local development
addr: ":9090"
worker_count: 4
sink_driver: xlsx
xlsx_path: out.xlsx
person_table: pax
event_table: ao
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BACKBLAST_CONFIG", tmpFile)
			_ = os.Setenv("BACKBLAST_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.SinkDriver, convey.ShouldEqual, config.SinkXLSX)
				convey.So(cfg.XLSXPath, convey.ShouldEqual, "out.xlsx")
				convey.So(cfg.PersonTable, convey.ShouldEqual, "pax")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("BACKBLAST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BACKBLAST_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("BACKBLAST_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BACKBLAST_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When a database driver has no dsn", func() {
			cfg.StoreDriver = config.DriverPostgres
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.StoreDriver = "mongo"
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "unknown store_driver")
		})

		convey.Convey("When the sheets sink has no spreadsheet", func() {
			cfg.SinkDriver = config.SinkSheets
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			cfg.SheetsSpreadsheetID = "sheet-1"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the file reference source has no path", func() {
			cfg.ReferenceSource = config.SourceFile
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When both tables share a name", func() {
			cfg.EventTable = cfg.PersonTable
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When sizes are not positive", func() {
			cfg.WorkerCount = 0
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "worker_count")
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"BACKBLAST_CONFIG",
		"BACKBLAST_ADDR",
		"BACKBLAST_QUEUE_SIZE",
		"BACKBLAST_WORKER_COUNT",
		"BACKBLAST_STORE_DRIVER",
		"BACKBLAST_STORE_DSN",
		"BACKBLAST_SINK_BACKOFF",
		"BACKBLAST_PIPELINE_TARGET_CATEGORY",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "backblast-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
