/*
 * @date: 2026.10.15
 * @description: scan 子命令，对 host:port 目标执行探针识别
 */

package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wisdark/observer-ward/internal/core/reporter"
	"github.com/wisdark/observer-ward/internal/core/scanner/service_probe"
)

type scanOptions struct {
	targets   []string
	timeoutMS uint64
	db        databaseOptions
	json      bool
	csvPath   string
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "探针识别目标服务",
		Long: `向目标发送指纹库中的探针并匹配响应。
先执行端口匹配的探针，全部无命中时再执行其余探针。

示例:
  observer-ward scan -t 10.0.0.1:22
  observer-ward scan -t 10.0.0.1:80 -t 10.0.0.1:8080 --timeout 5000 --json
  observer-ward scan -t 10.0.0.1:3306 --probe-filter '{"field":"rarity","operator":"less_than","value":5}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.targets, "target", "t", nil, "扫描目标 host:port，可重复")
	cmd.Flags().Uint64Var(&opts.timeoutMS, "timeout", 0, "单个探针超时(毫秒)，默认取配置")
	cmd.Flags().StringVar(&opts.db.path, "db", "", "指纹库路径 (json/yaml/nmap-service-probes)")
	cmd.Flags().IntVar(&opts.db.maxRarity, "max-rarity", 0, "探针稀有度上限，0 不限制")
	cmd.Flags().StringVar(&opts.db.probeFilter, "probe-filter", "", "探针过滤规则 (JSON 规则树)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "以 JSON 输出")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "同时导出 CSV 文件")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	sc := appConfig.Scanner
	if opts.db.path == "" {
		opts.db.path = appConfig.Fingerprint.DatabasePath
	}
	if opts.db.maxRarity == 0 {
		opts.db.maxRarity = sc.MaxRarity
	}
	if opts.db.probeFilter == "" {
		opts.db.probeFilter = sc.ProbeFilter
	}

	db, err := loadDatabase(opts.db)
	if err != nil {
		return err
	}

	timeout := opts.timeoutMS
	if timeout == 0 {
		timeout = sc.TimeoutMS
	}
	scanner := service_probe.NewScanner(db, timeout,
		service_probe.WithProbeWidth(sc.ProbeWidth),
		service_probe.WithRuleWidth(sc.RuleWidth),
		service_probe.WithReadSize(sc.ReadSize),
	)

	var out reporter.Reporter = reporter.NewConsoleReporter(os.Stdout)
	if opts.json {
		out = reporter.NewJSONReporter(os.Stdout, false)
	}
	if opts.csvPath != "" {
		f, err := os.Create(opts.csvPath)
		if err != nil {
			return fmt.Errorf("failed to create csv file: %w", err)
		}
		defer f.Close()
		out = reporter.NewMultiReporter(out, reporter.NewCSVReporter(f))
	}

	for _, target := range opts.targets {
		if !opts.json {
			pterm.Info.Printf("scanning %s with %d probes...\n", target, db.Len())
		}
		result := scanner.ScanDetail(cmd.Context(), target)
		if err := out.Report(cmd.Context(), result); err != nil {
			return fmt.Errorf("failed to report %s: %w", target, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newScanCmd())
}
