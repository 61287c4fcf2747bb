package extractor

import (
	"bytes"
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"
)

// Extractor 提取器定义，解码后不可变
// 编译结果不属于定义本身，见 Compiled
type Extractor struct {
	Name            string
	Part            Part
	Type            ExtractorType
	Internal        bool // 仅参与内部匹配，不对外输出
	CaseInsensitive bool
}

// ExtractorType 提取策略，封闭集合：*Regex *KVal *JSONPath *XPath *DSL
type ExtractorType interface {
	Kind() string
	extractorType()
}

// Regex 正则提取，patterns 有序
type Regex struct {
	Regex []string `json:"regex"`
	Group *int     `json:"group,omitempty"`
}

// KVal 键值提取，例如响应头和 cookie
type KVal struct {
	Group *int     `json:"group,omitempty"`
	KVal  []string `json:"kval"`
}

// JSONPath JSON 路径提取
// Group 仅为文档兼容保留，提取时不使用
type JSONPath struct {
	Group *int     `json:"group,omitempty"`
	JSON  []string `json:"json"`
}

// XPath XML/HTML 节点提取
type XPath struct {
	XPath     []string `json:"xpath"`
	Attribute string   `json:"attribute,omitempty"`
}

// DSL 表达式提取
type DSL struct {
	DSL []string `json:"dsl"`
}

func (*Regex) Kind() string    { return "regex" }
func (*KVal) Kind() string     { return "kval" }
func (*JSONPath) Kind() string { return "json" }
func (*XPath) Kind() string    { return "xpath" }
func (*DSL) Kind() string      { return "dsl" }

func (*Regex) extractorType()    {}
func (*KVal) extractorType()     {}
func (*JSONPath) extractorType() {}
func (*XPath) extractorType()    {}
func (*DSL) extractorType()      {}

// Equal 比较两个定义，集合字段按集合语义比较
func (e *Extractor) Equal(o *Extractor) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Name != o.Name || e.Part != o.Part || e.Internal != o.Internal || e.CaseInsensitive != o.CaseInsensitive {
		return false
	}

	switch a := e.Type.(type) {
	case *Regex:
		b, ok := o.Type.(*Regex)
		return ok && equalList(a.Regex, b.Regex) && equalGroup(a.Group, b.Group)
	case *KVal:
		b, ok := o.Type.(*KVal)
		return ok && equalSet(a.KVal, b.KVal) && equalGroup(a.Group, b.Group)
	case *JSONPath:
		b, ok := o.Type.(*JSONPath)
		return ok && equalSet(a.JSON, b.JSON) && equalGroup(a.Group, b.Group)
	case *XPath:
		b, ok := o.Type.(*XPath)
		return ok && equalSet(a.XPath, b.XPath) && a.Attribute == b.Attribute
	case *DSL:
		b, ok := o.Type.(*DSL)
		return ok && equalSet(a.DSL, b.DSL)
	}
	return e.Type == nil && o.Type == nil
}

func equalGroup(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalSet(a, b []string) bool {
	return equalList(dedupSorted(a), dedupSorted(b))
}

func dedupSorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[n-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}

// 定义文档：类型字段平铺在顶层，可选 type 标签；也接受嵌套写法
//   {"name":"ver","part":"body","regex":["v(\\d+)"],"group":1}
//   {"type":"xpath","xpath":["//title"]}
//   {"name":"ver","regex":{"regex":["v(\\d+)"],"group":1}}

var commonKeys = map[string]bool{
	"name": true, "part": true, "type": true, "internal": true, "case-insensitive": true,
}

// 每种类型允许的负载字段，第一个为必填的主字段
var payloadKeys = map[string][]string{
	"regex": {"regex", "group"},
	"kval":  {"kval", "group"},
	"json":  {"json", "group"},
	"xpath": {"xpath", "attribute"},
	"dsl":   {"dsl"},
}

// ParseExtractor 严格解析 JSON 定义文档
func ParseExtractor(data []byte) (*Extractor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidDefinition("%v", err)
	}
	if raw == nil {
		return nil, invalidDefinition("empty document")
	}

	kind, err := detectKind(raw)
	if err != nil {
		return nil, err
	}

	fields, err := payloadFields(raw, kind)
	if err != nil {
		return nil, err
	}

	allowed := payloadKeys[kind]
	payload := make(map[string]json.RawMessage)
	for key, value := range fields {
		if !contains(allowed, key) {
			return nil, invalidDefinition("unknown field %q for %s extractor", key, kind)
		}
		payload[key] = value
	}
	if _, ok := payload[allowed[0]]; !ok {
		return nil, invalidDefinition("missing field %q", allowed[0])
	}

	ext := &Extractor{}
	if err := decodeCommon(raw, ext); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(payload)
	switch kind {
	case "regex":
		ext.Type = &Regex{}
	case "kval":
		ext.Type = &KVal{}
	case "json":
		ext.Type = &JSONPath{}
	case "xpath":
		ext.Type = &XPath{}
	case "dsl":
		ext.Type = &DSL{}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ext.Type); err != nil {
		return nil, invalidDefinition("%s payload: %v", kind, err)
	}

	if r, ok := ext.Type.(*Regex); ok && r.Group != nil && *r.Group < 0 {
		return nil, invalidDefinition("regex group must not be negative: %d", *r.Group)
	}
	return ext, nil
}

// ParseExtractorYAML 解析 YAML 定义文档，字段与 JSON 一致
func ParseExtractorYAML(data []byte) (*Extractor, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalidDefinition("%v", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, invalidDefinition("%v", err)
	}
	return ParseExtractor(body)
}

// payloadFields 取出类型负载字段
// 类型键的值是对象时按嵌套写法处理，此时顶层只允许公共字段
func payloadFields(raw map[string]json.RawMessage, kind string) (map[string]json.RawMessage, error) {
	if nested, ok := raw[kind]; ok && bytes.HasPrefix(bytes.TrimSpace(nested), []byte("{")) {
		for key := range raw {
			if !commonKeys[key] && key != kind {
				return nil, invalidDefinition("unknown field %q for %s extractor", key, kind)
			}
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err != nil {
			return nil, invalidDefinition("%s payload: %v", kind, err)
		}
		return inner, nil
	}

	fields := make(map[string]json.RawMessage)
	for key, value := range raw {
		if !commonKeys[key] {
			fields[key] = value
		}
	}
	return fields, nil
}

func detectKind(raw map[string]json.RawMessage) (string, error) {
	if tag, ok := raw["type"]; ok {
		var kind string
		if err := json.Unmarshal(tag, &kind); err != nil {
			return "", invalidDefinition("type: %v", err)
		}
		if _, ok := payloadKeys[kind]; !ok {
			return "", invalidDefinition("unknown extractor type %q", kind)
		}
		return kind, nil
	}

	var found []string
	for kind := range payloadKeys {
		if _, ok := raw[kind]; ok {
			found = append(found, kind)
		}
	}
	switch len(found) {
	case 0:
		return "", invalidDefinition("no extractor type present")
	case 1:
		return found[0], nil
	}
	sort.Strings(found)
	return "", invalidDefinition("multiple extractor types present: %v", found)
}

func decodeCommon(raw map[string]json.RawMessage, ext *Extractor) error {
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &ext.Name); err != nil {
			return invalidDefinition("name: %v", err)
		}
	}
	if v, ok := raw["part"]; ok {
		if err := json.Unmarshal(v, &ext.Part); err != nil {
			return invalidDefinition("part: %v", err)
		}
	}
	if v, ok := raw["internal"]; ok {
		if err := json.Unmarshal(v, &ext.Internal); err != nil {
			return invalidDefinition("internal: %v", err)
		}
	}
	if v, ok := raw["case-insensitive"]; ok {
		if err := json.Unmarshal(v, &ext.CaseInsensitive); err != nil {
			return invalidDefinition("case-insensitive: %v", err)
		}
	}
	return nil
}

// MarshalJSON 输出与 ParseExtractor 对称的平铺文档
func (e *Extractor) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{})
	if e.Type != nil {
		body, err := json.Marshal(e.Type)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
		doc["type"] = e.Type.Kind()
	}
	if e.Name != "" {
		doc["name"] = e.Name
	}
	if e.Part != PartResponse {
		doc["part"] = e.Part
	}
	if e.Internal {
		doc["internal"] = true
	}
	if e.CaseInsensitive {
		doc["case-insensitive"] = true
	}
	return json.Marshal(doc)
}

// UnmarshalJSON 便于嵌入到其他 JSON 文档
func (e *Extractor) UnmarshalJSON(data []byte) error {
	parsed, err := ParseExtractor(data)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
