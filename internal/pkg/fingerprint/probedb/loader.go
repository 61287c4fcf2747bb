package probedb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wisdark/observer-ward/internal/pkg/logger"
	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// Format 指纹库文档格式
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatNmap // 原生 nmap-service-probes 文本
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatNmap:
		return "nmap"
	}
	return "json"
}

// DetectFormat 按扩展名判断格式，未知扩展名按内容猜测
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return FormatJSON
	}
	if bytes.HasPrefix(trimmed, []byte("- ")) {
		return FormatYAML
	}
	return FormatNmap
}

// Load 从文件加载指纹库
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(path, err)
	}
	probes, err := decode(data, DetectFormat(path, data))
	if err != nil {
		return nil, loadError(path, err)
	}
	db := New(probes)
	logger.Infof("Fingerprint database loaded: %s (%d probes)", path, db.Len())
	return db, nil
}

// LoadBytes 从内存文档加载指纹库
func LoadBytes(data []byte, format Format) (*Database, error) {
	probes, err := decode(data, format)
	if err != nil {
		return nil, loadError("", err)
	}
	return New(probes), nil
}

func decode(data []byte, format Format) ([]*Probe, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatNmap:
		return ParseServiceProbes(string(data))
	}
	return nil, fmt.Errorf("unsupported format: %v", format)
}

// probeDocument 指纹库文档中的单个探针
type probeDocument struct {
	Matches       []matchDocument `json:"matches"`
	DirectiveName string          `json:"directive_name"`
	Protocol      string          `json:"protocol"`
	DirectiveStr  string          `json:"directive_str"`
	TotalWaitMS   *uint64         `json:"total_wait_ms,omitempty"`
	TCPWrappedMS  *uint64         `json:"tcp_wrapped_ms,omitempty"`
	Rarity        int             `json:"rarity"`
	Ports         []uint16        `json:"ports"`
	SSLPorts      json.RawMessage `json:"ssl_ports,omitempty"`
	Fallback      *string         `json:"fallback,omitempty"`
}

type matchDocument struct {
	Service     string `json:"service"`
	Pattern     string `json:"pattern"`
	VersionInfo string `json:"version_info"`
}

func decodeJSON(data []byte) ([]*Probe, error) {
	var docs []probeDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return buildProbes(docs)
}

func decodeYAML(data []byte) ([]*Probe, error) {
	var generic []interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	body, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return decodeJSON(body)
}

func buildProbes(docs []probeDocument) ([]*Probe, error) {
	if len(docs) == 0 {
		return nil, errNoProbes
	}
	probes := make([]*Probe, 0, len(docs))
	for i, doc := range docs {
		directive, err := UnescapeDirective(doc.DirectiveStr)
		if err != nil {
			return nil, fmt.Errorf("probe #%d %s: directive_str: %w", i, doc.DirectiveName, err)
		}
		sslPorts, err := decodeSSLPorts(doc.SSLPorts)
		if err != nil {
			return nil, fmt.Errorf("probe #%d %s: ssl_ports: %w", i, doc.DirectiveName, err)
		}

		p := &Probe{
			DirectiveName: doc.DirectiveName,
			Protocol:      doc.Protocol,
			Directive:     directive,
			TotalWaitMS:   doc.TotalWaitMS,
			TCPWrappedMS:  doc.TCPWrappedMS,
			Rarity:        doc.Rarity,
			Ports:         append([]uint16(nil), doc.Ports...),
			SSLPorts:      sslPorts,
		}
		if doc.Fallback != nil {
			p.Fallback = *doc.Fallback
		}

		for _, m := range doc.Matches {
			rule, err := compileRule(m.Service, m.Pattern, "", m.VersionInfo, false)
			if err != nil {
				logger.Warnf("Drop unusable rule %s in probe %s: %v", m.Service, doc.DirectiveName, err)
				continue
			}
			p.Matches = append(p.Matches, rule)
		}
		p.indexPorts()
		probes = append(probes, p)
	}
	return probes, nil
}

// decodeSSLPorts ssl_ports 可以是端口数组，也可以是 "443,993-995" 形式的字符串
func decodeSSLPorts(raw json.RawMessage) ([]uint16, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var list []uint16
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var spec string
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("expect array or port spec string")
	}
	return parsePortSpec(spec)
}

func parsePortSpec(spec string) ([]uint16, error) {
	ports, err := utils.ParsePortList(spec)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, len(ports))
	for _, p := range ports {
		out = append(out, uint16(p))
	}
	return out, nil
}
