package utils

import (
	"encoding/json"
	"sort"
)

// StringSet 字符串集合，用于结果去重
type StringSet map[string]struct{}

// NewStringSet 创建集合并写入初始元素
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add 添加元素
func (s StringSet) Add(items ...string) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// Merge 合并另一个集合 (集合并)
func (s StringSet) Merge(other StringSet) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// Has 判断元素是否存在
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len 元素个数
func (s StringSet) Len() int {
	return len(s)
}

// Sorted 返回排序后的切片，便于输出和比较
func (s StringSet) Sorted() []string {
	list := make([]string, 0, len(s))
	for item := range s {
		list = append(list, item)
	}
	sort.Strings(list)
	return list
}

// Equal 判断两个集合元素是否完全一致
func (s StringSet) Equal(other StringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for item := range s {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// MarshalJSON 输出为排序后的数组
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewStringSet(list...)
	return nil
}
