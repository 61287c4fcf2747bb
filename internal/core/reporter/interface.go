/**
 * 结果输出接口定义
 * @date: 2026.10.15
 * @description: 扫描与提取结果统一按表格数据输出，控制台和 JSON 两种实现
 */

package reporter

import "context"

// TabularData 可以渲染为表格的数据
type TabularData interface {
	Headers() []string
	Rows() [][]string
}

// Reporter 输出一份结果
type Reporter interface {
	Report(ctx context.Context, data TabularData) error
}

// MultiReporter 同时向多个目标输出
type MultiReporter struct {
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

// Report 依次输出，返回第一个错误但不中断后续输出
func (m *MultiReporter) Report(ctx context.Context, data TabularData) error {
	var first error
	for _, r := range m.reporters {
		if err := r.Report(ctx, data); err != nil && first == nil {
			first = err
		}
	}
	return first
}
