// PaiTai 手术排台引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/paitai/paitai/internal/config"
	"github.com/paitai/paitai/internal/database"
	"github.com/paitai/paitai/internal/handler"
	"github.com/paitai/paitai/internal/metrics"
	"github.com/paitai/paitai/internal/repository"
	"github.com/paitai/paitai/pkg/catalog"
	"github.com/paitai/paitai/pkg/disruption"
	"github.com/paitai/paitai/pkg/logger"
	"github.com/paitai/paitai/pkg/predictor"
	"github.com/paitai/paitai/pkg/scheduler/optimizer"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	// 打印版本信息
	fmt.Printf("PaiTai 手术排台引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 资源目录（当日只读）
	cat := catalog.Default()

	// 时长预测器
	pred := &predictor.Heuristic{}

	// 优化器
	opt := optimizer.New(&optimizer.Config{
		Deadline:         cfg.Solver.Deadline,
		Workers:          cfg.Solver.Workers,
		NeighborhoodSize: cfg.Solver.NeighborhoodSize,
		MaxIterations:    cfg.Solver.MaxIterations,
		InitialTemp:      120.0,
		CoolingRate:      0.995,
		PlateauThreshold: 200,
	})

	// 指标采集
	m := metrics.New()

	// 控制器选项
	ctrlOpts := []disruption.Option{
		disruption.WithTiming(cfg.Day.StartMins, cfg.Day.HorizonMins, cfg.Day.TurnoverMins, cfg.Day.BreakMins),
		disruption.WithRiskWeight(cfg.Solver.RiskWeight),
		disruption.WithObserver(m),
	}

	// 可选持久化
	var (
		db           *database.DB
		scheduleRepo *repository.ScheduleRepository
	)
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库初始化失败")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.Migrate(migrateCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		cancel()

		scheduleRepo = repository.NewScheduleRepository(db)
		ctrlOpts = append(ctrlOpts, disruption.WithStore(scheduleRepo))
	}

	controller := disruption.NewController(cat, pred, opt, ctrlOpts...)

	// 创建处理器
	scheduleHandler := handler.NewScheduleHandler(controller, pred)

	// 创建 HTTP 服务器
	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":"%s","service":"paitai"}`, status)
	})

	// 版本信息端点
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	// API 根路由
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "PaiTai 手术排台引擎 API v1",
			"endpoints": {
				"day": {
					"start": "POST /api/v1/day/start"
				},
				"events": {
					"duration_adjust": "POST /api/v1/events/duration-adjust",
					"start_delay": "POST /api/v1/events/start-delay",
					"code_red": "POST /api/v1/events/code-red",
					"list": "GET /api/v1/events（需启用持久化）"
				},
				"schedule": {
					"current": "GET /api/v1/schedule",
					"history": "GET /api/v1/schedule/history（需启用持久化）"
				}
			}
		}`))
	})

	// 开始当日排台
	mux.HandleFunc("/api/v1/day/start", scheduleHandler.StartDay)

	// 扰动事件
	mux.HandleFunc("/api/v1/events/duration-adjust", scheduleHandler.DurationAdjust)
	mux.HandleFunc("/api/v1/events/start-delay", scheduleHandler.StartDelay)
	mux.HandleFunc("/api/v1/events/code-red", scheduleHandler.CodeRed)

	// 当前方案查询
	mux.HandleFunc("/api/v1/schedule", scheduleHandler.Current)

	// 历史查询（仅在启用持久化时挂载）
	if scheduleRepo != nil {
		historyHandler := handler.NewHistoryHandler(scheduleRepo)
		mux.HandleFunc("/api/v1/schedule/history", historyHandler.Snapshot)
		mux.HandleFunc("/api/v1/events", historyHandler.Events)
	}

	// ========================================
	// 监控端点
	// ========================================

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 中间件执行顺序：requestID -> rateLimit -> cors -> metrics -> logging -> handler
	globalRateLimiter = NewRateLimiter(float64(cfg.API.RateLimit))
	root := requestIDMiddleware(rateLimitMiddleware(corsMiddleware(m.Middleware(loggingMiddleware(mux)))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

// requestIDMiddleware 请求ID追踪中间件
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware 日志中间件
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID, _ := r.Context().Value("request_id").(string)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("请求处理")
	})
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RateLimiter 简单的令牌桶限流器
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // 每秒添加的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2, // 允许突发流量
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

var globalRateLimiter = NewRateLimiter(100)

// rateLimitMiddleware 限流中间件
func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !globalRateLimiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   true,
				"code":    "RATE_LIMITED",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware CORS中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
