package extractor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/dlclark/regexp2"
	"github.com/ohler55/ojg/oj"
	"github.com/spaolacci/murmur3"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// dslFunctions DSL 可调用的辅助函数
var dslFunctions = map[string]govaluate.ExpressionFunction{
	"len": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len expects 1 argument")
		}
		return float64(len(toString(args[0]))), nil
	},
	"tolower": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("tolower expects 1 argument")
		}
		return strings.ToLower(toString(args[0])), nil
	},
	"toupper": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("toupper expects 1 argument")
		}
		return strings.ToUpper(toString(args[0])), nil
	},
	"trim": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("trim expects 1 argument")
		}
		return strings.TrimSpace(toString(args[0])), nil
	},
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments")
		}
		return strings.Contains(toString(args[0]), toString(args[1])), nil
	},
	"base64": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("base64 expects 1 argument")
		}
		return base64.StdEncoding.EncodeToString([]byte(toString(args[0]))), nil
	},
	// mmh3 与 shodan favicon hash 一致：有符号 32 位
	"mmh3": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("mmh3 expects 1 argument")
		}
		return strconv.FormatInt(int64(int32(murmur3.Sum32([]byte(toString(args[0]))))), 10), nil
	},
	"regex": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("regex expects 2 arguments")
		}
		re, err := regexp2.Compile(toString(args[0]), regexp2.None)
		if err != nil {
			return nil, err
		}
		re.MatchTimeout = MatchTimeout
		m, err := re.FindStringMatch(toString(args[1]))
		if err != nil || m == nil {
			return "", err
		}
		if g := m.GroupByNumber(1); g != nil && len(g.Captures) > 0 {
			return g.String(), nil
		}
		return m.String(), nil
	},
}

// dslParameters 语料暴露给表达式的变量
// JSON 对象的顶层键直接作为变量，另有 body / corpus / length
func dslParameters(corpus string) map[string]interface{} {
	params := make(map[string]interface{})
	if data, err := oj.ParseString(corpus); err == nil {
		if obj, ok := data.(map[string]interface{}); ok {
			for k, v := range obj {
				params[k] = normalizeNumber(v)
			}
		}
	}
	params["body"] = corpus
	params["corpus"] = corpus
	params["length"] = float64(len(corpus))
	return params
}

// govaluate 只认 float64 数值
func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return v
}

func (c *Compiled) extractDSL(d *DSL, corpus string) utils.StringSet {
	result := utils.NewStringSet()
	params := dslParameters(corpus)

	for _, source := range d.DSL {
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(source, dslFunctions)
		if err != nil {
			continue
		}
		value, err := expr.Evaluate(params)
		if err != nil || value == nil {
			continue
		}
		result.Add(c.fold(toString(value)))
	}
	return result
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []byte:
		return string(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
