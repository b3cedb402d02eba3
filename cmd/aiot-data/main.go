package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/config"
	"github.com/zanewnch/AIOT-sub003/internal/database"
	httpapi "github.com/zanewnch/AIOT-sub003/internal/http"
	"github.com/zanewnch/AIOT-sub003/internal/logger"
	"github.com/zanewnch/AIOT-sub003/internal/mqttclient"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
	"github.com/zanewnch/AIOT-sub003/internal/service"
	"github.com/zanewnch/AIOT-sub003/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "aiot-data")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// PostgreSQL
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Redis（会话 + 最新位置缓存）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	// Repository 层
	usersRepo := repository.NewPostgresUsersRepository(db)
	rolesRepo := repository.NewPostgresRolesRepository(db)
	permsRepo := repository.NewPostgresPermissionsRepository(db)
	rtkRepo := repository.NewPostgresRTKRepository(db)
	positionsRepo := repository.NewPostgresDronePositionsRepository(db)
	statusRepo := repository.NewPostgresDroneStatusRepository(db)
	commandsRepo := repository.NewPostgresDroneCommandsRepository(db)
	tasksRepo := repository.NewPostgresArchiveTasksRepository(db)

	// MQTT（可选）
	var mqttClient *mqttclient.Client
	var publisher service.CommandPublisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqttclient.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()
		publisher = mqttClient
	} else {
		log.Warn("MQTT disabled, telemetry ingest and command dispatch are offline")
	}

	// RTK 厂家客户端（可选）
	var rtkVendor *service.RTKVendorClient
	if cfg.RTK.Enabled {
		rtkVendor = service.NewRTKVendorClient(cfg.RTK.BaseURL, cfg.RTK.AppID, cfg.RTK.SecretKey, log)
	}

	// Service 层
	authSvc := service.NewAuthService(usersRepo, kv, cfg.Session.TTL, log)
	userSvc := service.NewUserService(usersRepo, log)
	roleSvc := service.NewRoleService(rolesRepo, log)
	permSvc := service.NewPermissionService(permsRepo, log)
	rtkQueries := service.NewRTKQueriesSvc(rtkRepo, log)
	rtkCommands := service.NewRTKCommandsSvc(rtkRepo, rtkVendor, log)
	positionQueries := service.NewDronePositionQueriesSvc(positionsRepo, kv, log)
	positionCommands := service.NewDronePositionCommandsSvc(positionsRepo, kv, log)
	statusQueries := service.NewDroneStatusQueriesSvc(statusRepo, log)
	statusCommands := service.NewDroneStatusCommandsSvc(statusRepo, log)
	commandQueries := service.NewDroneCommandQueriesSvc(commandsRepo, log)
	commandCommands := service.NewDroneCommandCommandsSvc(commandsRepo, publisher, cfg.MQTT.CommandTopic, cfg.MQTT.QoS, log)
	archiveSvc := service.NewArchiveService(tasksRepo, positionsRepo, statusRepo, commandsRepo, cfg.Archive.Retention, cfg.Archive.BatchLimit, log)
	exportSvc := service.NewExportService(positionsRepo, log)

	// 遥测接入
	var ingester *service.TelemetryIngester
	if mqttClient != nil {
		ingester = service.NewTelemetryIngester(mqttClient, &cfg.MQTT, positionCommands, statusCommands, commandCommands, log)
		if err := ingester.Start(); err != nil {
			log.Fatal("Failed to start telemetry ingester", zap.Error(err))
		}
	}

	// HTTP 层
	sessionMW := httpapi.NewSessionMiddleware(authSvc, cfg.Session.CookieName, log)
	router := httpapi.NewRouter(log)
	router.RegisterRoutes(httpapi.Handlers{
		Auth:          httpapi.NewAuthHandler(authSvc, cfg.Session.CookieName, cfg.Session.Secure, log),
		Users:         httpapi.NewUserHandler(userSvc, log),
		Roles:         httpapi.NewRoleHandler(roleSvc, log),
		Permissions:   httpapi.NewPermissionHandler(permSvc, log),
		RTK:           httpapi.NewRTKHandler(rtkQueries, rtkCommands, log),
		DronePosition: httpapi.NewDronePositionHandler(positionQueries, exportSvc, log),
		DroneStatus:   httpapi.NewDroneStatusHandler(statusQueries, log),
		DroneCommand:  httpapi.NewDroneCommandHandler(commandQueries, commandCommands, log),
		ArchiveTasks:  httpapi.NewArchiveTasksHandler(archiveSvc, log),
	}, sessionMW)

	server := service.NewServer(cfg.HTTP.Addr, router, log)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	if ingester != nil {
		if err := ingester.Stop(); err != nil {
			log.Warn("Failed to stop telemetry ingester", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	log.Info("aiot-data stopped")
}
