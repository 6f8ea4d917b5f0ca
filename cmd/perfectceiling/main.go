package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/sahzadahmad246/perfectceiling/internal/config"
	"github.com/sahzadahmad246/perfectceiling/internal/db"
	"github.com/sahzadahmad246/perfectceiling/internal/handler"
	"github.com/sahzadahmad246/perfectceiling/internal/job"
	"github.com/sahzadahmad246/perfectceiling/internal/middleware"
	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
	"github.com/sahzadahmad246/perfectceiling/internal/schedule"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "perfectceiling",
		Short: "perfectceiling backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run perfectceiling server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("public_base_url", cfg.PublicBaseURL),
	)

	quotationRepo := repo.NewQuotationRepo(conn)
	auditRepo := repo.NewAuditRepo(conn)
	accessRepo := repo.NewAccessRepo(conn)

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	quotationService := service.NewQuotationService(quotationRepo, auditRepo)
	sharingService := service.NewSharingService(quotationRepo, auditRepo, accessRepo, limiter, cfg.PublicBaseURL)
	monitorService := service.NewMonitorService(auditRepo, accessRepo, limiter, uint(cfg.Sharing.RecentAuditLimit))

	deps := handler.RouterDeps{
		Quotations: handler.NewQuotationHandler(quotationService),
		Shares:     handler.NewShareHandler(sharingService),
		Monitor:    handler.NewMonitorHandler(monitorService),
		JWTSecret:  []byte(cfg.JWTSecret),

		PublicBurstWindow: 500 * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRateLimitCleanupJob(limiter), cfg.Sharing.CleanupCron); err != nil {
		return fmt.Errorf("schedule cleanup job: %w", err)
	}
	if err := scheduler.AddJob(job.NewSecurityScanJob(monitorService, time.Hour), cfg.Sharing.SecurityScanCron); err != nil {
		return fmt.Errorf("schedule security scan job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
