package reporter

import (
	"context"
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// ConsoleReporter 控制台表格输出
type ConsoleReporter struct {
	writer io.Writer // 为空时写标准输出
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{writer: w}
}

func (r *ConsoleReporter) Report(ctx context.Context, data TabularData) error {
	if data == nil {
		return nil
	}
	rows := data.Rows()
	if len(rows) == 0 {
		pterm.Warning.Println("No results found.")
		return nil
	}
	return r.printTable(data.Headers(), rows)
}

func (r *ConsoleReporter) printTable(headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)

	table := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(tableData)
	if r.writer != nil {
		table = table.WithWriter(r.writer)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
