package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Part 提取器作用的响应区域
type Part int

const (
	// PartResponse 整个响应，默认值
	PartResponse Part = iota
	// PartHeader 仅头部
	PartHeader
	// PartBody 仅正文
	PartBody
	// PartRaw 原始字节
	PartRaw
)

var partNames = map[Part]string{
	PartResponse: "response",
	PartHeader:   "header",
	PartBody:     "body",
	PartRaw:      "raw",
}

// ParsePart 解析区域名称，空字符串视为 response
func ParsePart(s string) (Part, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "response", "all":
		return PartResponse, nil
	case "header", "headers":
		return PartHeader, nil
	case "body":
		return PartBody, nil
	case "raw":
		return PartRaw, nil
	}
	return PartResponse, fmt.Errorf("unknown part: %q", s)
}

func (p Part) String() string {
	if name, ok := partNames[p]; ok {
		return name
	}
	return fmt.Sprintf("part(%d)", int(p))
}

// MarshalJSON 以名称序列化
func (p Part) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON 从名称反序列化
func (p *Part) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePart(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Response 一次观测到的响应
type Response struct {
	Header string
	Body   string
	Raw    string
}

// Select 按区域取出语料
// response 与 raw 优先使用原文，只有原文缺失时才由头部和正文拼接
func (r Response) Select(p Part) string {
	switch p {
	case PartHeader:
		return r.Header
	case PartBody:
		return r.Body
	case PartRaw, PartResponse:
		if r.Raw != "" {
			return r.Raw
		}
	}
	switch {
	case r.Header == "":
		return r.Body
	case r.Body == "":
		return r.Header
	}
	return strings.TrimRight(r.Header, "\r\n") + "\r\n\r\n" + r.Body
}
