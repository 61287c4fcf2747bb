package reporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
)

// CSVReporter 流式写入 CSV，表头取第一份结果的表头
type CSVReporter struct {
	mu      sync.Mutex
	out     io.Writer
	writer  *csv.Writer
	started bool
}

func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{out: w, writer: csv.NewWriter(w)}
}

func (r *CSVReporter) Report(ctx context.Context, data TabularData) error {
	if data == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		// UTF-8 BOM，Excel 打开不乱码
		if _, err := io.WriteString(r.out, "\xEF\xBB\xBF"); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		if err := r.writer.Write(data.Headers()); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		r.started = true
	}
	if err := r.writer.WriteAll(data.Rows()); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}
