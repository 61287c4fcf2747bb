package service_probe

import (
	"strconv"
	"strings"
)

// Headers 实现 reporter.TabularData
func (r *Result) Headers() []string {
	return []string{"Target", "Service", "Probe", "Phase", "Product", "Version", "CPE"}
}

// Rows 每条命中一行，无命中时输出一行空结果
func (r *Result) Rows() [][]string {
	if len(r.Hits) == 0 {
		return [][]string{{r.Target, "-", "-", strconv.Itoa(r.Phase), "", "", ""}}
	}
	rows := make([][]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		service := h.Service
		if h.Soft {
			service += "?"
		}
		rows = append(rows, []string{
			r.Target,
			service,
			h.Probe,
			strconv.Itoa(h.Phase),
			h.Version.Product,
			h.Version.Version,
			strings.Join(h.Version.CPE, ","),
		})
	}
	return rows
}
