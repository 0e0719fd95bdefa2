package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/recipe-cms/internal/config"
	"github.com/damoang/recipe-cms/internal/handler"
	"github.com/damoang/recipe-cms/internal/jobs"
	"github.com/damoang/recipe-cms/internal/middleware"
	"github.com/damoang/recipe-cms/internal/migration"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/internal/routes"
	"github.com/damoang/recipe-cms/internal/service"
	pkgcache "github.com/damoang/recipe-cms/pkg/cache"
	"github.com/damoang/recipe-cms/pkg/jwt"
	pkglogger "github.com/damoang/recipe-cms/pkg/logger"
	pkgredis "github.com/damoang/recipe-cms/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	dotenvFiles := config.LoadDotEnv()

	// 로거 초기화
	env := config.AppEnv()
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := config.ConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		pkglogger.GetLogger().Fatal().Err(err).Msg("failed to load config")
	}
	config.LogResolved(cfg)

	// MySQL 연결 (버전 관리는 DB 없이 동작할 수 없음)
	db, err := initDB(cfg.Database, cfg.Server.Mode)
	if err != nil {
		pkglogger.GetLogger().Fatal().Err(err).Msg("failed to connect to database")
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		pkglogger.GetLogger().Fatal().Err(err).Msg("migration failed")
	}

	// Redis 연결 (실패 시 캐시 없이 동작)
	var cacheService pkgcache.Service
	redisClient, err := pkgredis.NewClient(context.Background(), pkgredis.Options{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		pkglogger.Warn("Failed to connect to Redis: %v (continuing without cache)", err)
	} else {
		pkglogger.Info("Connected to Redis")
		cacheService = pkgcache.NewService(redisClient)
		defer redisClient.Close()
	}

	// Repositories
	store := repository.NewStore(db)
	postRepo := repository.NewPostRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Workflow config: settings 테이블 > YAML > 기본값
	settingSource := service.NewSettingSource(settingRepo)
	configProvider := service.NewCachedConfigProvider(
		service.NewWorkflowConfigProvider(settingSource, service.StaticSource(cfg.Workflow.PostTypes)),
		cacheService,
	)

	// Services
	versionService := service.NewVersionService(store)
	workflowService := service.NewWorkflowService(store, configProvider)
	integrityService := service.NewIntegrityService(store)
	postService := service.NewPostService(postRepo, versionService)

	// Handlers
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	postHandler := handler.NewPostHandler(postService)
	versionHandler := handler.NewVersionHandler(versionService)
	workflowHandler := handler.NewWorkflowHandler(workflowService, integrityService, configProvider, settingSource, configProvider)

	// 편집 자동화 작업
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(pkglogger.WithComponent("jobs"), cfg.Jobs.TickInterval)
		jobLog := pkglogger.WithComponent("editorial")
		copydesk := jobs.NewAutoCopydeskJob(store.Versions(), workflowService,
			cfg.Jobs.AutoCopydeskAfter, cfg.Jobs.BatchSize, jobLog)
		publish := jobs.NewScheduledPublishJob(postRepo, workflowService, cfg.Jobs.BatchSize, jobLog)
		scheduler.Register("auto_copydesk", cfg.Jobs.AutoCopydeskEvery, copydesk.Run)
		scheduler.Register("scheduled_publish", cfg.Jobs.ScheduledPublishEvery, publish.Run)
		scheduler.Start(context.Background())
		pkglogger.Info("Scheduler started with %d tasks", len(scheduler.Tasks()))
	}

	// Gin 라우터 생성
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "recipe-cms",
			"time":    time.Now().Unix(),
		})
	})

	limitCfg := middleware.DefaultRateLimitConfig()
	limitCfg.RequestsPerMinute = cfg.RateLimit.WritesPerMinute
	routes.Setup(router, postHandler, versionHandler, workflowHandler, jwtManager,
		middleware.RateLimitPerActor(redisClient, limitCfg))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkglogger.GetLogger().Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		pkglogger.Error("Server forced to shutdown: %v", err)
	}
}

func corsConfig(allowOrigins string) cors.Config {
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	var origins []string
	for _, o := range strings.Split(allowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           12 * time.Hour,
	}
}

// initDB MySQL 연결 초기화
func initDB(dbCfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(dbCfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+09:00'"

	logLevel := gormlogger.Warn
	if mode == gin.DebugMode {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	return db, nil
}
