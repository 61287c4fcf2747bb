package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePortList 解析端口表达式
// 支持单端口与区间混写，例如 "22,80,443,8000-8010"
func ParsePortList(s string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.SplitN(part, "-", 2)
			start, err := parsePort(rangeParts[0])
			if err != nil {
				return nil, err
			}
			end, err := parsePort(rangeParts[1])
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("invalid port range: %s", part)
			}
			for i := start; i <= end; i++ {
				ports = append(ports, i)
			}
			continue
		}

		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if p < 0 || p > 65535 {
		return 0, fmt.Errorf("port out of range: %d", p)
	}
	return p, nil
}
