package extractor

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// VersionSpec 版本组件模板，组件名 => 模板
// 模板中 $N / ${N} 引用第 N 个捕获组，${name} 引用命名捕获组，$$ 表示字面 $
//   {"version": "$1", "product": "${vendor} server"}
type VersionSpec map[string]string

var placeholderRegexp = regexp2.MustCompile(`\$(?:\$|(\d+)|\{(\w+)\})`, regexp2.None)

// Derive 从一次匹配中推导版本组件，展开为空的组件被丢弃
func (v VersionSpec) Derive(m *regexp2.Match) map[string]string {
	if len(v) == 0 || m == nil {
		return nil
	}
	out := make(map[string]string, len(v))
	for name, tmpl := range v {
		if value := strings.TrimSpace(ExpandGroups(tmpl, m)); value != "" {
			out[name] = value
		}
	}
	return out
}

// ExpandGroups 用匹配的捕获组展开模板，未参与或不存在的组展开为空
func ExpandGroups(tmpl string, m *regexp2.Match) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	expanded, err := placeholderRegexp.ReplaceFunc(tmpl, func(p regexp2.Match) string {
		if p.String() == "$$" {
			return "$"
		}
		if num := p.GroupByNumber(1); num != nil && len(num.Captures) > 0 {
			idx, _ := strconv.Atoi(num.String())
			return groupText(m.GroupByNumber(idx))
		}
		ref := p.GroupByNumber(2).String()
		if idx, err := strconv.Atoi(ref); err == nil {
			return groupText(m.GroupByNumber(idx))
		}
		return groupText(m.GroupByName(ref))
	}, -1, -1)
	if err != nil {
		return tmpl
	}
	return expanded
}

func groupText(g *regexp2.Group) string {
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}
