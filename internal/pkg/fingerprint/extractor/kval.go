package extractor

import (
	"bufio"
	"strings"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

type kvPair struct {
	key   string
	value string
}

// normalizeKey 统一键名：'-' 替换为 '_'
func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.TrimSpace(k), "-", "_")
}

// parseKeyValues 将语料解析为有序键值对
// 头部行 "Key: Value"，遇到头部之后的第一个空行停止；cookie 头额外拆出 k=v
func parseKeyValues(corpus string) []kvPair {
	var pairs []kvPair
	scanner := bufio.NewScanner(strings.NewReader(corpus))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(pairs) > 0 {
				break
			}
			continue
		}

		idx := strings.Index(line, ":")
		if idx <= 0 || strings.ContainsAny(line[:idx], " \t/") {
			continue
		}
		key := normalizeKey(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		pairs = append(pairs, kvPair{key: key, value: value})

		switch strings.ToLower(key) {
		case "cookie", "set_cookie":
			pairs = append(pairs, parseCookiePairs(value)...)
		}
	}
	return pairs
}

func parseCookiePairs(value string) []kvPair {
	var pairs []kvPair
	for _, item := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		pairs = append(pairs, kvPair{key: normalizeKey(k), value: strings.TrimSpace(v)})
	}
	return pairs
}

func (c *Compiled) extractKVal(kv *KVal, corpus string) utils.StringSet {
	result := utils.NewStringSet()
	pairs := parseKeyValues(corpus)

	for _, want := range kv.KVal {
		want = normalizeKey(want)
		var values []string
		for _, p := range pairs {
			if p.key == want || (c.def.CaseInsensitive && strings.EqualFold(p.key, want)) {
				values = append(values, p.value)
			}
		}
		for _, v := range pickGroup(values, kv.Group) {
			result.Add(c.fold(v))
		}
	}
	return result
}

// pickGroup 按有符号下标选择单个元素，负数从末尾计数；未设置时返回全部
func pickGroup[T any](items []T, group *int) []T {
	if group == nil {
		return items
	}
	idx := *group
	if idx < 0 {
		idx += len(items)
	}
	if idx < 0 || idx >= len(items) {
		return nil
	}
	return items[idx : idx+1]
}

// fold 忽略大小写时统一转小写
func (c *Compiled) fold(s string) string {
	if c.def.CaseInsensitive {
		return strings.ToLower(s)
	}
	return s
}
