package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	app "github.com/okian/belay/internal/app"
	"github.com/okian/belay/internal/config"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.CompetitorsFile = ""
	cfg.ScoresDB = filepath.Join(t.TempDir(), "scores.db")
	return cfg
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("BELAY_ADDR", ":8080")
			_ = os.Setenv("BELAY_COMMAND_QUEUE_SIZE", "64")
			_ = os.Setenv("BELAY_CONTEST_TYPE", "CRB")
			defer func() {
				_ = os.Unsetenv("BELAY_ADDR")
				_ = os.Unsetenv("BELAY_COMMAND_QUEUE_SIZE")
				_ = os.Unsetenv("BELAY_CONTEST_TYPE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.ContestType, convey.ShouldEqual, "crb")
			})
		})

		convey.Convey("When testing service creation", func() {
			cfg := testConfig(t)
			svc, hub, err := newService(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc, convey.ShouldNotBeNil)
			convey.So(hub, convey.ShouldNotBeNil)

			convey.Convey("Then the service should start and stop", func() {
				convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["started"], convey.ShouldBeTrue)
				convey.So(stats["queueSize"], convey.ShouldEqual, 1024)
				svc.Stop()
			})
		})

		convey.Convey("When the scores database cannot be opened", func() {
			cfg := testConfig(t)
			cfg.ScoresDB = filepath.Join(t.TempDir(), "missing", "dir", "scores.db")

			convey.Convey("Then service creation should fail", func() {
				svc, _, err := newService(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(svc, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the admin password hash is malformed", func() {
			cfg := testConfig(t)
			cfg.AdminPasswordHash = "not-a-bcrypt-hash"

			convey.Convey("Then service creation should fail", func() {
				_, _, err := newService(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager()
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics update", func() {
			svc := app.New()
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateServiceMetrics(svc)
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := testConfig(t)
		cfg.ContestType = "crb"
		svc, hub, err := newService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		go hub.Run(ctx)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newMux(ctx, cfg, svc, hub))
		defer srv.Close()

		get := func(path string) int {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			return resp.StatusCode
		}

		convey.Convey("Then the boot contest should be served", func() {
			convey.So(get("/contest"), convey.ShouldEqual, http.StatusOK)
			view := svc.Snapshot()
			convey.So(view.Configured, convey.ShouldBeTrue)
			convey.So(view.Clock.Remaining, convey.ShouldEqual, 240)
		})

		convey.Convey("Then metrics and docs should be served", func() {
			convey.So(get("/healthz"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/stats"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs"), convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the ranking should be served", func() {
			convey.So(get("/ranking"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/ranking?limit=0"), convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("BELAY_ADDR", "")
			defer func() { _ = os.Unsetenv("BELAY_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing an unknown contest type", func() {
			_ = os.Setenv("BELAY_CONTEST_TYPE", "marathon")
			defer func() { _ = os.Unsetenv("BELAY_CONTEST_TYPE") }()

			convey.Convey("Then configuration loading should fail", func() {
				_, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
