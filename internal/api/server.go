// Package api 组装 HTTP 服务：路由、存储与访问控制。
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/api/auth"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/api/middleware"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/config"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/metrics"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/ratelimit"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装 API 服务所需的依赖和路由处理。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	rdb     *redis.Client
	router  *gin.Engine
	auth    *auth.Handler
	tasks   TaskStore
	users   UserStore
	policy  *policy.Evaluator
	limiter *ratelimit.Limiter
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（登录限流状态）
// 3. 初始化 Gin 路由引擎与中间件
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	users := dbUserStore{db: db}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		router: r,
		auth: auth.NewHandler(
			users,
			cfg.Security.JWTSecret,
			cfg.Security.JWTExpire,
			cfg.Security.AllowSelfSignupRoles,
			logger,
		),
		tasks:  dbTaskStore{db: db},
		users:  users,
		policy: policy.NewEvaluator(users),
		limiter: ratelimit.NewRedisLimiter(
			rdb,
			"taskapi:ratelimit:login",
			cfg.App.LoginRateLimit,
			cfg.App.LoginRateBurst,
		),
	}
	s.registerRoutes()
	return s, nil
}

// Run 启动 HTTP 服务器并开始监听请求。
func (s *Server) Run() error {
	s.logger.Info("api server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与 Redis 连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", s.auth.Register)
	authGroup.POST("/login", middleware.LoginRateLimiter(s.limiter, s.logger), s.auth.Login)

	authed := authGroup.Group("")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.GET("/me", s.auth.Me)
	authed.POST("/logout", s.auth.Logout)

	tasks := s.router.Group("/api/tasks")
	tasks.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	tasks.POST("", s.handleCreateTask)
	tasks.GET("", s.handleListTasks)
	tasks.GET("/:id", s.handleGetTask)
	tasks.PUT("/:id", s.handleUpdateTask)
	tasks.DELETE("/:id", s.handleDeleteTask)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
