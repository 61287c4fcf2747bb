package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONReporter 以 JSON 输出原始结果，适合管道处理
type JSONReporter struct {
	writer io.Writer
	indent bool
}

func NewJSONReporter(w io.Writer, indent bool) *JSONReporter {
	return &JSONReporter{writer: w, indent: indent}
}

// Report 直接序列化结果本身，不经过表格转换
func (r *JSONReporter) Report(ctx context.Context, data TabularData) error {
	if data == nil {
		return nil
	}
	enc := json.NewEncoder(r.writer)
	if r.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
