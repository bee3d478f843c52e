package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/rueidis"
	"github.com/spf13/cobra"

	"github.com/grouptask/taskflow/internal/clock"
	config "github.com/grouptask/taskflow/internal/configs"
	"github.com/grouptask/taskflow/internal/dedup"
	httpapi "github.com/grouptask/taskflow/internal/http"
	repository "github.com/grouptask/taskflow/internal/repositories"
	"github.com/grouptask/taskflow/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the task workflow HTTP API and the recurring-task scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()

		clk, err := clock.NewSystem(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid APP_TIMEZONE: %v", err)
		}

		database := config.NewDatabase(cfg.DatabaseDSN)

		var redisClient rueidis.Client
		var guard dedup.OccurrenceGuard = dedup.NewMemoryGuard()
		if cfg.RedisEnabled {
			redisClient = config.NewRedisClient(cfg.RedisAddr)
			defer redisClient.Close()
			guard = dedup.NewRedisGuard(redisClient, time.Duration(cfg.DedupTTLSeconds)*time.Second)
		}

		taskRepo := repository.NewTaskRepository(database)
		tplRepo := repository.NewTemplateRepository(database)
		kpiRepo := repository.NewKPIRepository(database)
		memberRepo := repository.NewMemberRepository(database)

		kpiCfg := services.DefaultKPIConfig()
		kpiCfg.EarlyMargin = time.Duration(cfg.EarlyMarginHours) * time.Hour
		kpiCfg.Grace = time.Duration(cfg.GraceHours) * time.Hour
		scorer := services.NewKPIService(kpiCfg)

		taskService := services.NewTaskService(database, taskRepo, kpiRepo, scorer, clk)
		templateService := services.NewTemplateService(tplRepo, clk)
		scheduler := services.NewSchedulerService(
			database, tplRepo, taskRepo, kpiRepo, memberRepo,
			taskService, scorer, guard, clk,
			time.Duration(cfg.TickIntervalSeconds)*time.Second,
			cfg.MaxTemplateFailures,
		)
		leaderboard := services.NewLeaderboardService(
			kpiRepo, memberRepo, clk, redisClient,
			time.Duration(cfg.CacheTTLSeconds)*time.Second,
		)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scheduler.Run()

		e := echo.New()
		handler := httpapi.NewHandler(taskService, templateService, scheduler, leaderboard, memberRepo, clk)
		httpapi.Register(e, handler, cfg.RateLimit)

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()

		_ = e.Shutdown(shutdownCtx)
		scheduler.Shutdown(shutdownCtx)

		log.Println("HTTP server and scheduler shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
