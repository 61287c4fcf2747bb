package probedb

import (
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/extractor"
)

// RuleMatchTimeout 单条规则的匹配超时
var RuleMatchTimeout = 100 * time.Millisecond

// Probe 一个主动探针：发送的指令与期望的响应规则
type Probe struct {
	DirectiveName string
	Protocol      string
	Directive     []byte // 解码后的原始字节
	Matches       []*MatchRule
	TotalWaitMS   *uint64 // 等待提示，仅供参考
	TCPWrappedMS  *uint64
	Rarity        int // 静态优先级，仅供参考
	Ports         []uint16
	SSLPorts      []uint16
	Fallback      string

	portSet map[uint16]struct{}
}

// HasPort 端口是否属于该探针的适用端口集合
func (p *Probe) HasPort(port uint16) bool {
	_, ok := p.portSet[port]
	return ok
}

// IsSSLPort 端口是否在 sslports 中
func (p *Probe) IsSSLPort(port uint16) bool {
	for _, sp := range p.SSLPorts {
		if sp == port {
			return true
		}
	}
	return false
}

func (p *Probe) indexPorts() {
	p.portSet = make(map[uint16]struct{}, len(p.Ports))
	uniq := p.Ports[:0]
	for _, port := range p.Ports {
		if _, ok := p.portSet[port]; ok {
			continue
		}
		p.portSet[port] = struct{}{}
		uniq = append(uniq, port)
	}
	p.Ports = uniq
}

// MatchRule 响应匹配规则
type MatchRule struct {
	Service     string
	Pattern     string // 规范化后的正则源码
	VersionInfo string // nmap 版本模板，如 "p/OpenSSH/ v/$1/"
	Soft        bool   // 来自 softmatch

	re *regexp2.Regexp
}

// compileRule 编译规则正则
// flags 为 nmap 的 i / s 选项
func compileRule(service, pattern, flags, versionInfo string, soft bool) (*MatchRule, error) {
	source := DecodePattern(pattern)

	var opts regexp2.RegexOptions
	if strings.Contains(flags, "i") {
		opts |= regexp2.IgnoreCase
	}
	if strings.Contains(flags, "s") {
		opts |= regexp2.Singleline
	}

	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = RuleMatchTimeout

	return &MatchRule{
		Service:     service,
		Pattern:     source,
		VersionInfo: versionInfo,
		Soft:        soft,
		re:          re,
	}, nil
}

// MatchString 对已映射为 latin-1 的响应求值，任意位置匹配即命中
func (r *MatchRule) MatchString(subject string) bool {
	ok, err := r.re.MatchString(subject)
	return err == nil && ok
}

// Match 对原始响应字节求值
func (r *MatchRule) Match(resp []byte) bool {
	return r.MatchString(Latin1(resp))
}

// Version 解析命中规则的版本模板
func (r *MatchRule) Version(subject string) VersionInfo {
	if r.VersionInfo == "" {
		return VersionInfo{}
	}
	m, err := r.re.FindStringMatch(subject)
	if err != nil || m == nil {
		return VersionInfo{}
	}
	return ParseVersionInfo(r.VersionInfo, m)
}

// VersionInfo nmap 版本模板展开结果
type VersionInfo struct {
	Product    string   `json:"product,omitempty"`
	Version    string   `json:"version,omitempty"`
	Info       string   `json:"info,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	OS         string   `json:"os,omitempty"`
	DeviceType string   `json:"device_type,omitempty"`
	CPE        []string `json:"cpe,omitempty"`
}

// IsZero 是否没有任何字段
func (v VersionInfo) IsZero() bool {
	return v.Product == "" && v.Version == "" && v.Info == "" && v.Hostname == "" &&
		v.OS == "" && v.DeviceType == "" && len(v.CPE) == 0
}

// $P(n) $I(n,">") $SUBST(n,...) 统一退化为 $n
var helperRegexp = regexp2.MustCompile(`\$(?:P|I|SUBST)\((\d+)[^)]*\)`, regexp2.None)

// ParseVersionInfo 解析 "p/x/ v/y/ cpe:/a:b/" 形式的模板
// 分隔符为标签后的任意字符
func ParseVersionInfo(template string, m *regexp2.Match) VersionInfo {
	var info VersionInfo
	if simplified, err := helperRegexp.Replace(template, "$$$1", -1, -1); err == nil {
		template = simplified
	}

	input := template
	for len(input) > 0 {
		input = strings.TrimSpace(input)
		if len(input) < 2 {
			break
		}

		var tag string
		if strings.HasPrefix(input, "cpe:") {
			tag = "cpe:"
			input = input[4:]
		} else {
			tag = input[:1]
			input = input[1:]
		}
		if len(input) == 0 {
			break
		}

		delimiter := input[:1]
		input = input[1:]
		end := strings.Index(input, delimiter)
		if end == -1 {
			break
		}
		val := strings.TrimSpace(extractor.ExpandGroups(input[:end], m))
		// 跳过结束分隔符后的标志位，如 cpe:/a:b/a 中的 a
		input = strings.TrimLeftFunc(input[end+1:], func(r rune) bool { return !unicode.IsSpace(r) })

		switch tag {
		case "p":
			info.Product = val
		case "v":
			info.Version = val
		case "i":
			info.Info = val
		case "h":
			info.Hostname = val
		case "o":
			info.OS = val
		case "d":
			info.DeviceType = val
		case "cpe:":
			info.CPE = append(info.CPE, "cpe:/"+val)
		}
	}
	return info
}
