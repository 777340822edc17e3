package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/JobFuchs/app/controllers"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/cache"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/database"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/env"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/reconciler"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/router"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/subscription"
)

func main() {
	app, shutdown := NewApplication()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		shutdown()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// NewApplication wires the full service: database, cache, repositories,
// notification dispatcher, expiry reconciler and the HTTP API. The returned
// shutdown func stops the background workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	dispatcher := notify.NewDispatcher(database.GetDB(), 0)
	dispatcher.Start()
	controllers.SetNotifier(dispatcher)

	subs := subscription.NewServiceFromDB(database.GetDB(), dispatcher)
	sweeper := reconciler.NewFromEnv(repos, subs, dispatcher)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("reconciler: %v", err)
	}
	controllers.SetReconciler(sweeper)

	app := fiber.New(fiber.Config{
		AppName:   "JobFuchs",
		BodyLimit: 1 << 20,
	})

	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	router.InstallRouter(app)

	return app, func() {
		sweeper.Stop()
		dispatcher.Stop()
	}
}
