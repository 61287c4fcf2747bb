package reporter

import (
	"sort"
	"strings"

	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/extractor"
)

// ExtractionTable 提取结果的表格视图
type ExtractionTable []extractor.Result

func (t ExtractionTable) Headers() []string {
	return []string{"Extractor", "Values", "Versions"}
}

func (t ExtractionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		name := r.Name
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{name, strings.Join(r.Values.Sorted(), ", "), formatVersions(r.Versions)})
	}
	return rows
}

func formatVersions(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, " ")
}
