/*
 * @date: 2026.10.15
 * @description: extract 子命令，对一段响应执行提取器
 */

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wisdark/observer-ward/internal/core/reporter"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/extractor"
)

type extractOptions struct {
	definition string
	input      string
	part       string
	version    map[string]string
	json       bool
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "对响应内容执行提取器",
		Long: `编译提取器定义 (JSON 或 YAML) 并作用于输入内容。
以 @ 开头的参数按文件读取，输入为 - 时读取标准输入。

示例:
  observer-ward extract -e '{"regex":["version=(\\d+\\.\\d+)"],"group":1}' -i 'version=3.2;ok'
  observer-ward extract -e @nginx.yaml -i @response.txt --version version='$1'
  curl -si http://127.0.0.1 | observer-ward extract -e '{"kval":["server"]}' -i -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.definition, "extractor", "e", "", "提取器定义，JSON/YAML 文本或 @文件")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "输入内容，文本、@文件或 - (标准输入)")
	cmd.Flags().StringVar(&opts.part, "part", "", "覆盖提取器的 part (response/header/body/raw)")
	cmd.Flags().StringToStringVar(&opts.version, "version", nil, "版本模板 key=template，可重复")
	cmd.Flags().BoolVar(&opts.json, "json", false, "以 JSON 输出")
	_ = cmd.MarkFlagRequired("extractor")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runExtract(ctx context.Context, stdout io.Writer, stdin io.Reader, opts *extractOptions) error {
	raw, err := readArgument(opts.definition, stdin)
	if err != nil {
		return err
	}
	def, err := parseDefinition(raw)
	if err != nil {
		return err
	}
	if opts.part != "" {
		if def.Part, err = extractor.ParsePart(opts.part); err != nil {
			return err
		}
	}

	compiled, err := extractor.Compile(def)
	if err != nil {
		return err
	}

	corpus, err := readArgument(opts.input, stdin)
	if err != nil {
		return err
	}
	result := compiled.Run(splitResponse(string(corpus)), opts.version)

	var out reporter.Reporter = reporter.NewConsoleReporter(stdout)
	if opts.json {
		out = reporter.NewJSONReporter(stdout, true)
	}
	// 内部提取器的结果不输出
	return out.Report(ctx, reporter.ExtractionTable(extractor.FilterExternal([]extractor.Result{result})))
}

// readArgument @path 读文件，- 读标准输入，其余按字面值
func readArgument(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg[1:], err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

// parseDefinition 以 { 开头按 JSON 解析，否则按 YAML
func parseDefinition(raw []byte) (*extractor.Extractor, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return extractor.ParseExtractor(raw)
	}
	return extractor.ParseExtractorYAML(raw)
}

// splitResponse 按首个空行拆分头部与正文，找不到空行时整段视为正文
// 原文保留在 Raw 中，response 区域直接使用原文
func splitResponse(corpus string) extractor.Response {
	resp := extractor.Response{Raw: corpus}
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if i := strings.Index(corpus, sep); i >= 0 {
			resp.Header = corpus[:i]
			resp.Body = corpus[i+len(sep):]
			return resp
		}
	}
	resp.Body = corpus
	return resp
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
}
