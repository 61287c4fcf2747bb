// 规则树匹配器
// 用 JSON 描述的 and / or / not 条件树对任意 map 或结构体求值
package matcher

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// MatchRule 规则树节点
// 逻辑节点使用 And / Or / Not，条件节点使用 Field / Operator / Value
type MatchRule struct {
	And []MatchRule `json:"and,omitempty"`
	Or  []MatchRule `json:"or,omitempty"`
	Not *MatchRule  `json:"not,omitempty"`

	Field      string      `json:"field,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	IgnoreCase bool        `json:"ignore_case,omitempty"`
}

// IsEmpty 空规则匹配一切
func (r MatchRule) IsEmpty() bool {
	return len(r.And) == 0 && len(r.Or) == 0 && r.Not == nil && r.Field == "" && r.Operator == ""
}

// Match 评估数据是否符合规则
func Match(data interface{}, rule MatchRule) (bool, error) {
	if len(rule.And) > 0 {
		for _, sub := range rule.And {
			matched, err := Match(data, sub)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	}

	if len(rule.Or) > 0 {
		for _, sub := range rule.Or {
			matched, err := Match(data, sub)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	if rule.Not != nil {
		matched, err := Match(data, *rule.Not)
		return !matched && err == nil, err
	}

	if rule.Field == "" && rule.Operator == "" {
		return true, nil
	}

	actual, exists := getFieldValue(data, rule.Field)
	switch rule.Operator {
	case "exists":
		return exists, nil
	case "is_null":
		return !exists || actual == nil, nil
	}
	if !exists {
		return false, nil
	}

	return evaluate(actual, rule)
}

// ParseJSON 解析 JSON 规则字符串，空字符串返回空规则
func ParseJSON(s string) (MatchRule, error) {
	var rule MatchRule
	if strings.TrimSpace(s) == "" {
		return rule, nil
	}
	if err := json.Unmarshal([]byte(s), &rule); err != nil {
		return rule, fmt.Errorf("parse match rule: %w", err)
	}
	return rule, nil
}

// getFieldValue 按点号路径取值，结构体字段按 json tag 或字段名查找
func getFieldValue(data interface{}, path string) (interface{}, bool) {
	current := reflect.ValueOf(data)
	for _, part := range strings.Split(path, ".") {
		for current.Kind() == reflect.Ptr || current.Kind() == reflect.Interface {
			if current.IsNil() {
				return nil, false
			}
			current = current.Elem()
		}

		switch current.Kind() {
		case reflect.Map:
			v := current.MapIndex(reflect.ValueOf(part))
			if !v.IsValid() {
				return nil, false
			}
			current = v
		case reflect.Struct:
			v, ok := structField(current, part)
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	if !current.IsValid() {
		return nil, false
	}
	return current.Interface(), true
}

func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name || (tag == "" && f.Name == name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func evaluate(actual interface{}, rule MatchRule) (bool, error) {
	expected := rule.Value
	str := func(v interface{}) string {
		s := fmt.Sprintf("%v", v)
		if rule.IgnoreCase {
			return strings.ToLower(s)
		}
		return s
	}

	switch rule.Operator {
	case "equals":
		return str(actual) == str(expected), nil
	case "not_equals":
		return str(actual) != str(expected), nil
	case "contains":
		// 列表字段按元素判断，标量按子串判断
		if items, ok := asList(actual); ok {
			return containsItem(items, str(expected), str), nil
		}
		return strings.Contains(str(actual), str(expected)), nil
	case "not_contains":
		if items, ok := asList(actual); ok {
			return !containsItem(items, str(expected), str), nil
		}
		return !strings.Contains(str(actual), str(expected)), nil
	case "starts_with":
		return strings.HasPrefix(str(actual), str(expected)), nil
	case "ends_with":
		return strings.HasSuffix(str(actual), str(expected)), nil
	case "regex":
		pattern, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("regex pattern must be string")
		}
		opts := regexp2.None
		if rule.IgnoreCase {
			opts |= regexp2.IgnoreCase
		}
		re, err := regexp2.Compile(pattern, opts)
		if err != nil {
			return false, err
		}
		return re.MatchString(fmt.Sprintf("%v", actual))
	case "in", "not_in":
		items, ok := asList(expected)
		if !ok {
			return false, fmt.Errorf("in/not_in expected value must be a list")
		}
		found := containsItem(items, str(actual), str)
		if rule.Operator == "in" {
			return found, nil
		}
		return !found, nil
	case "greater_than", "less_than", "greater_than_or_equal", "less_than_or_equal":
		return compareNumbers(actual, rule.Operator, expected)
	}
	return false, fmt.Errorf("unknown operator: %s", rule.Operator)
}

func asList(v interface{}) ([]interface{}, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// []byte 视为标量
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func containsItem(items []interface{}, want string, str func(interface{}) string) bool {
	for _, item := range items {
		if str(item) == want {
			return true
		}
	}
	return false
}

func compareNumbers(actual interface{}, op string, expected interface{}) (bool, error) {
	v1, err := toFloat64(actual)
	if err != nil {
		return false, nil
	}
	v2, err := toFloat64(expected)
	if err != nil {
		return false, fmt.Errorf("expected value is not a number: %v", expected)
	}

	switch op {
	case "greater_than":
		return v1 > v2, nil
	case "less_than":
		return v1 < v2, nil
	case "greater_than_or_equal":
		return v1 >= v2, nil
	case "less_than_or_equal":
		return v1 <= v2, nil
	}
	return false, nil
}

func toFloat64(v interface{}) (float64, error) {
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return val.Float(), nil
	case reflect.String:
		return strconv.ParseFloat(val.String(), 64)
	}
	return 0, fmt.Errorf("not a number: type=%T value=%v", v, v)
}
