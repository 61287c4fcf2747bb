/*
 * @date: 2026.10.15
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wisdark/observer-ward/internal/config"
	"github.com/wisdark/observer-ward/internal/core/lib/network/dialer"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
)

var (
	cfgPath  string
	envFile  string
	logLevel string

	// appConfig 由 PersistentPreRunE 加载，子命令共享
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "observer-ward",
	Short: "observer-ward 服务与技术指纹识别",
	Long: `observer-ward 通过主动探针和响应提取器识别网络服务。

示例:
  observer-ward scan -t 192.168.1.1:22
  observer-ward scan -t example.com:443 --max-rarity 6 --json
  observer-ward extract -e '{"regex":["nginx/([\\d.]+)"],"group":1}' -i @response.txt
  observer-ward serve --config ./configs
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] observer-ward crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件或目录 (默认: ./configs)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "环境变量文件")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
}

// setup 读取 .env 与配置文件，初始化日志和全局拨号器
func setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cfg.Log.Level == "debug" {
		pterm.EnableDebugMessages()
	}

	if _, err := logger.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	d, err := dialer.FromConfig(cfg.Proxy, time.Duration(cfg.Scanner.TimeoutMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create dialer: %w", err)
	}
	dialer.SetGlobalDialer(d)

	appConfig = cfg
	return nil
}

// loadConfig 参数为文件时按文件所在目录加载
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return config.LoadConfigFromFile(path)
		}
	}
	return config.NewConfigLoader(path, config.DefaultEnvPrefix).LoadConfig()
}

// configDir 配置热重载监听的目录
func configDir() string {
	if cfgPath == "" {
		return "./configs"
	}
	if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
		return filepath.Dir(cfgPath)
	}
	return cfgPath
}
