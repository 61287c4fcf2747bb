/**
 * 配置管理
 * @date: 2026.10.15
 * @description: 服务识别引擎配置结构，yaml 与 viper(mapstructure) 双标签
 */
package config

import (
	"time"
)

// Config 全局配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 探针扫描配置
	Scanner *ScannerConfig `yaml:"scanner" mapstructure:"scanner"`

	// 指纹库配置
	Fingerprint *FingerprintConfig `yaml:"fingerprint" mapstructure:"fingerprint"`

	// HTTP 服务配置
	Server *ServerConfig `yaml:"server" mapstructure:"server"`

	// 代理配置
	Proxy *ProxyConfig `yaml:"proxy" mapstructure:"proxy"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// ScannerConfig 探针扫描配置
type ScannerConfig struct {
	TimeoutMS   uint64 `yaml:"timeout_ms" mapstructure:"timeout_ms"`     // 单个探针读写超时（毫秒）
	ProbeWidth  int    `yaml:"probe_width" mapstructure:"probe_width"`   // 探针并发宽度
	RuleWidth   int    `yaml:"rule_width" mapstructure:"rule_width"`     // 规则匹配并发宽度
	ReadSize    int    `yaml:"read_size" mapstructure:"read_size"`       // 单次读取缓冲大小
	MaxRarity   int    `yaml:"max_rarity" mapstructure:"max_rarity"`     // 探针稀有度上限，0 表示不过滤
	ProbeFilter string `yaml:"probe_filter" mapstructure:"probe_filter"` // 探针过滤规则(JSON 规则树)
}

// FingerprintConfig 指纹库配置
type FingerprintConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"` // 指纹库路径，为空时使用可执行文件同目录
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`                   // 监听地址
	Port         int           `yaml:"port" mapstructure:"port"`                   // 监听端口
	Mode         string        `yaml:"mode" mapstructure:"mode"`                   // 运行模式 (debug/release/test)
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`   // 读取超时时间
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"` // 写入超时时间
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`   // 是否启用 SOCKS5 代理
	Address  string `yaml:"address" mapstructure:"address"`   // 代理地址 host:port
	Username string `yaml:"username" mapstructure:"username"` // 认证用户名
	Password string `yaml:"password" mapstructure:"password"` // 认证密码
}
