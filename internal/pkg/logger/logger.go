// 日志管理器
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wisdark/observer-ward/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// LoggerManager 持有 logrus 实例及当前生效的配置
type LoggerManager struct {
	mu     sync.Mutex
	logger *logrus.Logger
	config *config.LogConfig
}

// LoggerInstance 全局日志实例，为 nil 时包级方法静默
var LoggerInstance *LoggerManager

// InitLogger 按配置构建日志并设为全局实例
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	lm, err := newManager(cfg)
	if err != nil {
		return nil, err
	}
	LoggerInstance = lm
	return lm, nil
}

func newManager(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}
	lm := &LoggerManager{logger: logrus.New()}
	if err := lm.apply(cfg); err != nil {
		return nil, err
	}
	return lm, nil
}

// UpdateConfig 热更新日志配置，失败时保留原配置
func (lm *LoggerManager) UpdateConfig(cfg *config.LogConfig) error {
	if cfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()

	prev := lm.config
	if err := lm.apply(cfg); err != nil {
		return err
	}
	if prev != nil && prev.Level != cfg.Level {
		lm.logger.Infof("Log level updated from %s to %s", prev.Level, cfg.Level)
	}
	return nil
}

// apply 先构建全部组件再统一替换，避免半更新
func (lm *LoggerManager) apply(cfg *config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	fallback := err != nil
	if fallback {
		// 首次初始化回退到 info，热更新直接拒绝
		if lm.config != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		level = logrus.InfoLevel
	}
	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return err
	}
	out, err := newOutput(cfg)
	if err != nil {
		return err
	}

	lm.logger.SetLevel(level)
	lm.logger.SetFormatter(formatter)
	lm.logger.SetOutput(out)
	lm.logger.SetReportCaller(cfg.Caller)
	if fallback {
		lm.logger.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	lm.config = cfg
	return nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyFunc: "function",
			},
		}, nil
	case "text", "":
		return &logrus.TextFormatter{TimestampFormat: timestampFormat, FullTimestamp: true}, nil
	}
	return nil, fmt.Errorf("unsupported log format: %s", format)
}

func newOutput(cfg *config.LogConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "file":
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}

	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path is required when output is file")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rotate := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // 天
		Compress:   cfg.Compress,
	}
	// debug 时同时打到控制台
	if strings.EqualFold(cfg.Level, "debug") {
		return io.MultiWriter(os.Stderr, rotate), nil
	}
	return rotate, nil
}

func Info(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Info(args...)
	}
}

func Infof(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warnf(format, args...)
	}
}

func Error(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Error(args...)
	}
}

func WithField(key string, value interface{}) *logrus.Entry {
	return WithFields(logrus.Fields{key: value})
}

// WithFields 未初始化时返回丢弃输出的 entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	if LoggerInstance != nil {
		return LoggerInstance.logger.WithFields(fields)
	}
	return discard.WithFields(fields)
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
