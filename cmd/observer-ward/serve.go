/*
 * @date: 2026.10.15
 * @description: serve 子命令，启动 HTTP 服务
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wisdark/observer-ward/internal/app/server"
	"github.com/wisdark/observer-ward/internal/config"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var (
		db     databaseOptions
		listen string
		port   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Long: `加载指纹库后以 HTTP 接口提供扫描与提取能力。
配置目录变化时只热更新日志配置，扫描参数与指纹库需要重启生效。

示例:
  observer-ward serve --config ./configs
  observer-ward serve --host 0.0.0.0 --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if listen != "" {
				cfg.Server.Host = listen
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if db.path == "" {
				db.path = cfg.Fingerprint.DatabasePath
			}
			if db.maxRarity == 0 {
				db.maxRarity = cfg.Scanner.MaxRarity
			}
			if db.probeFilter == "" {
				db.probeFilter = cfg.Scanner.ProbeFilter
			}
			return runServe(cfg, db)
		},
	}

	cmd.Flags().StringVar(&listen, "host", "", "监听地址，默认取配置")
	cmd.Flags().IntVar(&port, "port", 0, "监听端口，默认取配置")
	cmd.Flags().StringVar(&db.path, "db", "", "指纹库路径")
	cmd.Flags().IntVar(&db.maxRarity, "max-rarity", 0, "探针稀有度上限，0 不限制")
	cmd.Flags().StringVar(&db.probeFilter, "probe-filter", "", "探针过滤规则 (JSON 规则树)")

	return cmd
}

func runServe(cfg *config.Config, dbOpts databaseOptions) error {
	db, err := loadDatabase(dbOpts)
	if err != nil {
		return err
	}

	srv := server.New(cfg, db)
	if err := srv.Start(); err != nil {
		return err
	}

	// 配置目录不存在时只记录警告，不影响服务
	watcher, err := config.WatchConfig(configDir(), func(oldCfg, newCfg *config.Config) error {
		merged := config.LogOnlyChange(oldCfg, newCfg)
		if logger.LoggerInstance == nil {
			return nil
		}
		return logger.LoggerInstance.UpdateConfig(merged.Log)
	})
	if err != nil {
		logger.Warnf("config hot reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
