package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "OBSERVER_WARD"

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configPath string
	envPrefix  string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器
func NewConfigLoader(configPath, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &ConfigLoader{
		configPath: configPath,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// LoadConfig 加载配置
// 配置文件不存在时仅使用默认值和环境变量
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	cl.viper.SetConfigType("yaml")

	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.AutomaticEnv()
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cl.bindEnvVars()
	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile 加载配置文件
// 先找 config.<env>.yaml，再找 config.yaml
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configPath == "" {
		if envPath := os.Getenv(cl.envPrefix + "_CONFIG_PATH"); envPath != "" {
			cl.configPath = envPath
		} else {
			cl.configPath = "./configs"
		}
	}

	env := cl.getEnvironment()

	cl.viper.AddConfigPath(cl.configPath)
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	cl.viper.SetConfigName(fmt.Sprintf("config.%s", env))
	if err := cl.viper.ReadInConfig(); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}

	cl.viper.SetConfigName("config")
	if err := cl.viper.ReadInConfig(); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// getEnvironment 获取运行环境
func (cl *ConfigLoader) getEnvironment() string {
	env := os.Getenv(cl.envPrefix + "_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development"
	}
	return env
}

// bindEnvVars 绑定环境变量
func (cl *ConfigLoader) bindEnvVars() {
	bind := func(key, suffix string) {
		_ = cl.viper.BindEnv(key, cl.envPrefix+"_"+suffix)
	}

	// 日志
	bind("log.level", "LOG_LEVEL")
	bind("log.format", "LOG_FORMAT")
	bind("log.output", "LOG_OUTPUT")
	bind("log.file_path", "LOG_FILE_PATH")

	// 扫描
	bind("scanner.timeout_ms", "TIMEOUT_MS")
	bind("scanner.max_rarity", "MAX_RARITY")

	// 指纹库
	bind("fingerprint.database_path", "DB_PATH")

	// 服务
	bind("server.host", "SERVER_HOST")
	bind("server.port", "SERVER_PORT")
	bind("server.mode", "SERVER_MODE")

	// 代理
	bind("proxy.enabled", "PROXY_ENABLED")
	bind("proxy.address", "PROXY_ADDRESS")
	bind("proxy.username", "PROXY_USERNAME")
	bind("proxy.password", "PROXY_PASSWORD")
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	cl.viper.SetDefault("app.name", "observer_ward")
	cl.viper.SetDefault("app.environment", "development")
	cl.viper.SetDefault("app.debug", false)

	cl.viper.SetDefault("log.level", "info")
	cl.viper.SetDefault("log.format", "text")
	cl.viper.SetDefault("log.output", "stderr")
	cl.viper.SetDefault("log.file_path", "./logs/observer_ward.log")
	cl.viper.SetDefault("log.max_size", 100)
	cl.viper.SetDefault("log.max_backups", 3)
	cl.viper.SetDefault("log.max_age", 28)
	cl.viper.SetDefault("log.compress", true)
	cl.viper.SetDefault("log.caller", false)

	cl.viper.SetDefault("scanner.timeout_ms", 3000)
	cl.viper.SetDefault("scanner.probe_width", 16)
	cl.viper.SetDefault("scanner.rule_width", 100)
	cl.viper.SetDefault("scanner.read_size", 4096)
	cl.viper.SetDefault("scanner.max_rarity", 0)
	cl.viper.SetDefault("scanner.probe_filter", "")

	cl.viper.SetDefault("fingerprint.database_path", "")

	cl.viper.SetDefault("server.host", "127.0.0.1")
	cl.viper.SetDefault("server.port", 8090)
	cl.viper.SetDefault("server.mode", "release")
	cl.viper.SetDefault("server.read_timeout", "30s")
	cl.viper.SetDefault("server.write_timeout", "60s")

	cl.viper.SetDefault("proxy.enabled", false)
	cl.viper.SetDefault("proxy.address", "")
}

// validateConfig 验证配置
func (cl *ConfigLoader) validateConfig(config *Config) error {
	if config.Server == nil || config.Scanner == nil || config.Log == nil {
		return fmt.Errorf("incomplete config")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Scanner.TimeoutMS == 0 {
		return fmt.Errorf("scanner timeout_ms must be positive")
	}

	if config.Scanner.ProbeWidth <= 0 || config.Scanner.RuleWidth <= 0 {
		return fmt.Errorf("scanner widths must be positive: probe=%d rule=%d",
			config.Scanner.ProbeWidth, config.Scanner.RuleWidth)
	}

	if config.Proxy != nil && config.Proxy.Enabled && config.Proxy.Address == "" {
		return fmt.Errorf("proxy address is required when proxy is enabled")
	}

	return nil
}

// GetConfigPath 获取实际使用的配置文件路径
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

// LoadConfigFromFile 从指定文件所在目录加载配置
func LoadConfigFromFile(configFile string) (*Config, error) {
	loader := NewConfigLoader(filepath.Dir(configFile), DefaultEnvPrefix)
	return loader.LoadConfig()
}
