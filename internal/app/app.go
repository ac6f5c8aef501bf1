package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/controller"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/database"
	"exam_practice_backend/pkg/logger"
	"exam_practice_backend/pkg/monitoring"
	"exam_practice_backend/pkg/security"
	"exam_practice_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	limiter         *security.RateLimiter
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	magicLink *repository.MagicLinkRepository
	catalog   *repository.CatalogRepository
	session   *repository.TestSessionRepository
	purchase  *repository.PurchaseRepository
	dashboard *repository.DashboardRepository

	// 读链路：Redis 缓存 -> 数据库 -> 内置题库
	cached   *repository.CachedCatalog
	memory   *repository.MemoryCatalog
	fallback *repository.FallbackCatalog
}

type services struct {
	origins   *security.OriginPolicy
	sessions  *service.SessionProvider
	auth      *service.AuthService
	user      *service.UserService
	storage   *service.StorageService
	catalog   *service.CatalogService
	purchase  *service.PurchaseService
	exam      *service.ExamService
	examHub   *service.ExamHub
	dashboard *service.DashboardService
	admin     *service.AdminService
}

type controllers struct {
	auth      *controller.AuthController
	user      *controller.UserController
	catalog   *controller.CatalogController
	purchase  *controller.PurchaseController
	exam      *controller.ExamController
	dashboard *controller.DashboardController
	admin     *controller.AdminController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置文件变化后调用
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{
		user:      repository.NewUserRepository(db),
		magicLink: repository.NewMagicLinkRepository(db),
		catalog:   repository.NewCatalogRepository(db),
		session:   repository.NewTestSessionRepository(db),
		purchase:  repository.NewPurchaseRepository(db),
		dashboard: repository.NewDashboardRepository(db),
	}

	memory, err := repository.NewMemoryCatalog()
	if err != nil {
		logger.Log.Fatal("Failed to load built-in catalog", zap.Error(err))
	}
	repos.memory = memory

	var primary repository.CatalogReader = repos.catalog
	if rdb != nil {
		repos.cached = repository.NewCachedCatalog(repos.catalog, rdb,
			time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second)
		primary = repos.cached
	}

	policy, err := repository.ParseFallbackPolicy(cfg.Catalog.FallbackPolicy)
	if err != nil {
		logger.Log.Fatal("Invalid catalog fallback policy", zap.Error(err))
	}
	repos.fallback = repository.NewFallbackCatalog(primary, memory, policy)
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{origins: security.NewOriginPolicy(cfg.CORS.AllowedOrigins)}

	var store service.AuthSessionStore = service.NewMemorySessionStore()
	if rdb != nil {
		store = service.NewRedisSessionStore(rdb)
	}
	s.sessions = service.NewSessionProvider(store, cfg.JWT.Secret, cfg.JWT.ExpireTime, 256)

	s.auth = service.NewAuthService(repos.user, repos.magicLink, s.sessions, service.LogMailer{}, cfg)
	s.user = service.NewUserService(repos.user)
	s.storage = service.NewStorageService(cfg)
	s.catalog = service.NewCatalogService(repos.fallback, repos.purchase)

	// 未配置服务端密钥时关闭付费购买，保持接口值为 nil
	var gateway service.PaymentGateway
	if cfg.Payment.MidtransServerKey != "" {
		gateway = service.NewMidtransGateway(cfg.Payment.MidtransServerKey, cfg.Payment.MidtransProduction)
	} else {
		logger.Log.Warn("Midtrans server key not configured, paid checkout disabled")
	}
	s.purchase = service.NewPurchaseService(repos.purchase, repos.fallback, repos.user, gateway, cfg)

	s.exam = service.NewExamService(repos.session, repos.fallback, s.purchase, cfg)
	s.examHub = service.NewExamHub(s.exam, cfg.Exam.LowTimeWarningSeconds, s.origins.CheckOrigin)
	s.dashboard = service.NewDashboardService(repos.dashboard, cfg)

	var cache service.CacheInvalidator
	if repos.cached != nil {
		cache = repos.cached
	}
	s.admin = service.NewAdminService(repos.catalog, repos.catalog, repos.user, cache)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		user:      controller.NewUserController(s.user),
		catalog:   controller.NewCatalogController(s.catalog),
		purchase:  controller.NewPurchaseController(s.purchase),
		exam:      controller.NewExamController(s.exam, s.examHub),
		dashboard: controller.NewDashboardController(s.dashboard),
		admin:     controller.NewAdminController(s.admin, s.storage),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config, s *services) {
	router.Use(security.CORS(s.origins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests,
			time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
		router.Use(a.limiter.Middleware())
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(cfg.Tracing.ServiceName))
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerConfigCallbacks 可热更新的配置项
func (a *App) registerConfigCallbacks(repos *repositories, s *services) {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.examHub.SetLowTimeWarning(cfg.Exam.LowTimeWarningSeconds)
		logger.Log.Info("Low time warning updated", zap.Int("seconds", cfg.Exam.LowTimeWarningSeconds))
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		policy, err := repository.ParseFallbackPolicy(cfg.Catalog.FallbackPolicy)
		if err != nil {
			logger.Log.Error("Ignoring invalid catalog fallback policy", zap.Error(err))
			return
		}
		repos.fallback.SetPolicy(policy)
		logger.Log.Info("Catalog fallback policy updated", zap.String("policy", string(policy)))
	})
}

func (a *App) startBackgroundTasks(repos *repositories, s *services, cfg *config.Config) {
	c := cron.New()

	if _, err := c.AddFunc(cfg.Exam.ExpirySweep, func() {
		n, err := s.exam.ExpireOverdue()
		if err != nil {
			logger.Log.Error("Expire overdue sessions failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Log.Info("Expired overdue sessions", zap.Int("count", n))
		}
	}); err != nil {
		logger.Log.Fatal("Invalid exam.expiry_sweep schedule", zap.String("schedule", cfg.Exam.ExpirySweep), zap.Error(err))
	}

	c.AddFunc("@every 10m", func() {
		n, err := s.purchase.ExpirePending()
		if err != nil {
			logger.Log.Error("Expire pending purchases failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Log.Info("Expired pending purchases", zap.Int64("count", n))
		}
	})

	c.AddFunc("@hourly", func() {
		if _, err := repos.magicLink.DeleteExpired(time.Now()); err != nil {
			logger.Log.Error("Delete expired magic links failed", zap.Error(err))
		}
	})

	if a.limiter != nil {
		c.AddFunc("@every 1m", func() {
			if n := a.limiter.Sweep(); n > 0 {
				logger.Log.Debug("Rate limiter swept idle clients", zap.Int("count", n))
			}
		})
	}

	c.Start()
	a.cron = c

	// 登录事件消费者，更新最近登录时间
	events, err := s.sessions.Subscribe()
	if err != nil {
		logger.Log.Error("Failed to subscribe auth events", zap.Error(err))
		return
	}
	go func() {
		for e := range events {
			if e.Type != service.EventSignedIn {
				continue
			}
			if err := repos.user.UpdateLastSignIn(e.UserID, e.At); err != nil {
				logger.Log.Warn("Failed to record sign in",
					zap.Uint("user_id", e.UserID),
					zap.Error(err),
				)
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 不可用时题库不走缓存，登录会话存内存
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running without cache", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	if err := util.RegisterValidators(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	repos := app.initRepositories(db, rdb, cfg)
	if cfg.Seed {
		if err := repos.memory.Seed(db); err != nil {
			logger.Log.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Log.Info("Built-in catalog seeded")
	}

	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg, services)
	app.registerRoutes(router, controllers, services)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.registerConfigCallbacks(repos, services)
	app.startBackgroundTasks(repos, services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.services != nil {
		a.services.examHub.Stop()
		a.services.sessions.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
