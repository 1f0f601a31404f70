// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/paitai/paitai/pkg/model"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Day      DayConfig      `yaml:"day"`
	Solver   SolverConfig   `yaml:"solver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
// Enabled 为 false 时引擎以纯内存模式运行，不持久化快照与事件
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// DayConfig 当日运营参数（分钟粒度）
type DayConfig struct {
	StartMins    int `yaml:"start_mins"`    // 常规排台起点
	HorizonMins  int `yaml:"horizon_mins"`  // 当日时域上限
	TurnoverMins int `yaml:"turnover_mins"` // 手术室周转时间
	BreakMins    int `yaml:"break_mins"`    // 医生台间休息
}

// SolverConfig 求解器配置
type SolverConfig struct {
	Deadline         time.Duration `yaml:"deadline"`
	Workers          int           `yaml:"workers"`
	NeighborhoodSize int           `yaml:"neighborhood_size"`
	MaxIterations    int           `yaml:"max_iterations"`
	RiskWeight       int           `yaml:"risk_weight"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
// 存在 .env 文件时先载入（不覆盖已有环境变量）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "paitai"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "paitai"),
			User:            getEnv("DB_USER", "paitai"),
			Password:        getEnv("DB_PASSWORD", "paitai123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 60*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
		},
		Day: DayConfig{
			StartMins:    getEnvClock("DAY_START", 480),
			HorizonMins:  getEnvInt("DAY_HORIZON_MINS", 1440),
			TurnoverMins: getEnvInt("DAY_TURNOVER_MINS", 30),
			BreakMins:    getEnvInt("DAY_SURGEON_BREAK_MINS", 30),
		},
		Solver: SolverConfig{
			Deadline:         getEnvDuration("SOLVER_DEADLINE", 30*time.Second),
			Workers:          getEnvInt("SOLVER_WORKERS", 8),
			NeighborhoodSize: getEnvInt("SOLVER_NEIGHBORHOOD_SIZE", 24),
			MaxIterations:    getEnvInt("SOLVER_MAX_ITERATIONS", 2000),
			RiskWeight:       getEnvInt("SOLVER_RISK_WEIGHT", 2),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate 检查配置自洽性
func (c *Config) validate() error {
	if c.Day.StartMins < 0 || c.Day.StartMins >= c.Day.HorizonMins {
		return fmt.Errorf("当日起点 %d 必须位于时域 [0, %d) 内", c.Day.StartMins, c.Day.HorizonMins)
	}
	if c.Day.HorizonMins > 1440 {
		return fmt.Errorf("当日时域不能超过 1440 分钟")
	}
	if c.Day.TurnoverMins < 0 || c.Day.BreakMins < 0 {
		return fmt.Errorf("周转时间与休息时间不能为负")
	}
	if c.Solver.Workers <= 0 {
		return fmt.Errorf("求解工作协程数必须为正")
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvClock 解析 "HH:MM" 形式的时刻为当日分钟数
func getEnvClock(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if mins, err := model.ParseClock(value); err == nil {
			return mins
		}
	}
	return defaultValue
}
