package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/config"
	"github.com/zanewnch/AIOT-sub003/internal/database"
	"github.com/zanewnch/AIOT-sub003/internal/logger"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// runTimeout 单轮归档上限，避免批次互相叠加
const runTimeout = 2 * time.Hour

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "aiot-archiver")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	positionsRepo := repository.NewPostgresDronePositionsRepository(db)
	statusRepo := repository.NewPostgresDroneStatusRepository(db)
	commandsRepo := repository.NewPostgresDroneCommandsRepository(db)
	tasksRepo := repository.NewPostgresArchiveTasksRepository(db)

	archiveSvc := service.NewArchiveService(tasksRepo, positionsRepo, statusRepo, commandsRepo, cfg.Archive.Retention, cfg.Archive.BatchLimit, log)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Archive.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		tasks := archiveSvc.RunAll(ctx, "scheduler")
		log.Info("Scheduled archive run finished",
			zap.Int("completed_tables", len(tasks)),
		)
	})
	if err != nil {
		log.Fatal("Invalid archive cron spec",
			zap.String("cron_spec", cfg.Archive.CronSpec),
			zap.Error(err),
		)
	}

	scheduler.Start()
	log.Info("Archive scheduler started",
		zap.String("cron_spec", cfg.Archive.CronSpec),
		zap.Duration("retention", cfg.Archive.Retention),
		zap.Int("batch_limit", cfg.Archive.BatchLimit),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	// 等待进行中的归档批次收尾
	<-scheduler.Stop().Done()
	log.Info("aiot-archiver stopped")
}
