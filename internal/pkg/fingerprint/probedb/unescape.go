package probedb

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// UnescapeDirective 将探针字符串中的转义序列解码为原始字节
// 支持 \\ \0 \a \b \f \n \r \t \v \xHH，未知转义原样保留
func UnescapeDirective(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("trailing backslash in %q", s)
		}
		i++
		switch s[i] {
		case '\\':
			out = append(out, '\\')
		case '0':
			out = append(out, 0)
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case 'x':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("short \\x escape in %q", s)
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("invalid \\x escape %q in %q", s[i-1:i+3], s)
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			out = append(out, '\\', s[i])
		}
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DecodePattern 规范化规则正则源码
// 仅把 \0 改写为 \x00，其余转义成对跳过交给正则引擎；结果按 latin-1 映射为字符
func DecodePattern(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		if s[i+1] == '0' {
			b.WriteString(`\x00`)
		} else {
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
		}
		i++
	}
	return Latin1([]byte(b.String()))
}

// Latin1 字节逐个映射为 U+0000..U+00FF，使正则按原始字节匹配
func Latin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
