// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// SolverLogger 求解器专用日志器
type SolverLogger struct {
	base *zerolog.Logger
}

// NewSolverLogger 创建求解器日志器
func NewSolverLogger() *SolverLogger {
	l := Get().With().Str("component", "solver").Logger()
	return &SolverLogger{base: &l}
}

// StartSolve 记录求解开始
func (l *SolverLogger) StartSolve(solveID string, cases, pinned int) {
	l.base.Info().
		Str("solve_id", solveID).
		Int("cases", cases).
		Int("pinned", pinned).
		Msg("开始求解排台")
}

// SolveComplete 记录求解完成
func (l *SolverLogger) SolveComplete(solveID string, duration time.Duration, objective int64, makespan int) {
	l.base.Info().
		Str("solve_id", solveID).
		Dur("duration", duration).
		Int64("objective", objective).
		Int("makespan", makespan).
		Msg("求解完成")
}

// SolveInfeasible 记录无可行解
func (l *SolverLogger) SolveInfeasible(solveID string, reason string) {
	l.base.Warn().
		Str("solve_id", solveID).
		Str("reason", reason).
		Msg("无可行解")
}

// CaseWaitlisted 记录病例进入等待列表
func (l *SolverLogger) CaseWaitlisted(caseID, reason string) {
	l.base.Warn().
		Str("case_id", caseID).
		Str("reason", reason).
		Msg("病例无法排入")
}

// ControllerLogger 调度控制器专用日志器
type ControllerLogger struct {
	base *zerolog.Logger
}

// NewControllerLogger 创建调度控制器日志器
func NewControllerLogger() *ControllerLogger {
	l := Get().With().Str("component", "controller").Logger()
	return &ControllerLogger{base: &l}
}

// Event 记录扰动事件
func (l *ControllerLogger) Event(kind, caseID string, now int) {
	l.base.Info().
		Str("event", kind).
		Str("case_id", caseID).
		Int("now", now).
		Msg("处理扰动事件")
}

// Repin 记录固定/释放决策
func (l *ControllerLogger) Repin(pinned, freed int, now int) {
	l.base.Debug().
		Int("pinned", pinned).
		Int("freed", freed).
		Int("now", now).
		Msg("固定过去病例，释放未来病例")
}

// KeepPrevious 记录保留旧方案
func (l *ControllerLogger) KeepPrevious(reason string) {
	l.base.Warn().
		Str("reason", reason).
		Msg("重排失败，保留原有排台方案")
}
