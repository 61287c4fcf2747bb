package probedb

import (
	"github.com/wisdark/observer-ward/internal/pkg/matcher"
)

// ProbeAttributes 暴露给过滤规则的探针属性
type ProbeAttributes struct {
	Name      string   `json:"name"`
	Protocol  string   `json:"protocol"`
	Rarity    int      `json:"rarity"`
	Ports     []uint16 `json:"ports"`
	SSLPorts  []uint16 `json:"ssl_ports"`
	Fallback  string   `json:"fallback"`
	Services  []string `json:"services"`
	Rules     int      `json:"rules"`
	Directive int      `json:"directive_len"`
}

// Attributes 生成探针属性快照
func (p *Probe) Attributes() ProbeAttributes {
	attrs := ProbeAttributes{
		Name:      p.DirectiveName,
		Protocol:  p.Protocol,
		Rarity:    p.Rarity,
		Ports:     p.Ports,
		SSLPorts:  p.SSLPorts,
		Fallback:  p.Fallback,
		Rules:     len(p.Matches),
		Directive: len(p.Directive),
	}
	seen := make(map[string]struct{})
	for _, r := range p.Matches {
		if _, ok := seen[r.Service]; ok {
			continue
		}
		seen[r.Service] = struct{}{}
		attrs.Services = append(attrs.Services, r.Service)
	}
	return attrs
}

// FilterOptions 探针筛选条件
type FilterOptions struct {
	MaxRarity int               // 0 表示不限制
	Rule      matcher.MatchRule // 空规则表示不过滤
}

// Filter 按稀有度上限与规则树筛选，规则求值出错的探针被排除
func (db *Database) Filter(opts FilterOptions) (*Database, error) {
	if _, err := matcher.Match(ProbeAttributes{}, opts.Rule); err != nil {
		return nil, err
	}
	return db.Select(func(p *Probe) bool {
		if opts.MaxRarity > 0 && p.Rarity > opts.MaxRarity {
			return false
		}
		if opts.Rule.IsEmpty() {
			return true
		}
		ok, err := matcher.Match(p.Attributes(), opts.Rule)
		return err == nil && ok
	}), nil
}
