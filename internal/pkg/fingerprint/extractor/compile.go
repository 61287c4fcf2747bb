package extractor

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// MatchTimeout 单次正则匹配的超时，防止回溯爆炸
var MatchTimeout = time.Second

// Compiled 编译后的提取器句柄
// 由 Compile 显式构造，正则列表与定义中的模式一一对应且顺序一致
type Compiled struct {
	def     Extractor
	regexes []*regexp2.Regexp
}

// Compile 编译提取器
// 正则类型逐个编译模式，遇到第一个非法模式即返回 *CompileError，不返回任何句柄
// 其他类型无需编译
func Compile(ext *Extractor) (*Compiled, error) {
	if ext == nil || ext.Type == nil {
		return nil, fmt.Errorf("%w: extractor has no type", ErrCompile)
	}

	c := &Compiled{def: *ext}

	r, ok := ext.Type.(*Regex)
	if !ok {
		return c, nil
	}

	var opts regexp2.RegexOptions
	if ext.CaseInsensitive {
		opts |= regexp2.IgnoreCase
	}

	regexes := make([]*regexp2.Regexp, 0, len(r.Regex))
	for i, pattern := range r.Regex {
		re, err := regexp2.Compile(pattern, opts)
		if err != nil {
			return nil, &CompileError{Name: ext.Name, Index: i, Pattern: pattern, Err: err}
		}
		re.MatchTimeout = MatchTimeout
		regexes = append(regexes, re)
	}
	c.regexes = regexes
	return c, nil
}

// MustCompile 编译失败时 panic，用于内置提取器
func MustCompile(ext *Extractor) *Compiled {
	c, err := Compile(ext)
	if err != nil {
		panic(err)
	}
	return c
}

// Definition 返回定义副本
func (c *Compiled) Definition() Extractor {
	return c.def
}

// Len 已编译的正则数量
func (c *Compiled) Len() int {
	return len(c.regexes)
}

// Extract 对语料执行提取，返回去重的值集合与版本组件
// 语料无法按类型解析时返回空结果，不返回错误
func (c *Compiled) Extract(corpus string, version VersionSpec) (utils.StringSet, map[string]string) {
	switch t := c.def.Type.(type) {
	case *Regex:
		return c.extractRegex(t, corpus, version)
	case *KVal:
		return c.extractKVal(t, corpus), map[string]string{}
	case *JSONPath:
		return c.extractJSON(t, corpus), map[string]string{}
	case *XPath:
		return c.extractXPath(t, corpus), map[string]string{}
	case *DSL:
		return c.extractDSL(t, corpus), map[string]string{}
	}
	return utils.NewStringSet(), map[string]string{}
}

// ExtractResponse 按定义中的 Part 选择语料后提取
func (c *Compiled) ExtractResponse(resp Response, version VersionSpec) (utils.StringSet, map[string]string) {
	return c.Extract(resp.Select(c.def.Part), version)
}

func (c *Compiled) extractRegex(r *Regex, corpus string, version VersionSpec) (utils.StringSet, map[string]string) {
	result := utils.NewStringSet()
	versions := make(map[string]string)

	group := 0
	if r.Group != nil {
		group = *r.Group
	}

	for _, re := range c.regexes {
		m, err := re.FindStringMatch(corpus)
		for m != nil && err == nil {
			if g := m.GroupByNumber(group); g != nil && len(g.Captures) > 0 {
				result.Add(g.String())
			}
			for k, v := range version.Derive(m) {
				versions[k] = v
			}
			m, err = re.FindNextMatch(m)
		}
	}
	return result, versions
}

// Result 单个提取器的输出
type Result struct {
	Name     string            `json:"name,omitempty"`
	Internal bool              `json:"internal,omitempty"`
	Values   utils.StringSet   `json:"values"`
	Versions map[string]string `json:"versions,omitempty"`
}

// FilterExternal 去掉内部提取器的结果，用于对外报告
func FilterExternal(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if !r.Internal {
			out = append(out, r)
		}
	}
	return out
}

// Run 执行提取并带上提取器元信息
func (c *Compiled) Run(resp Response, version VersionSpec) Result {
	values, versions := c.ExtractResponse(resp, version)
	return Result{
		Name:     c.def.Name,
		Internal: c.def.Internal,
		Values:   values,
		Versions: versions,
	}
}
