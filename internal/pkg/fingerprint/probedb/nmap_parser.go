package probedb

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wisdark/observer-ward/internal/pkg/logger"
)

var probeRegexp = regexp.MustCompile(`^Probe ([a-zA-Z0-9]+) ([^ ]+) q\|([^|]*)\|`)

// ParseServiceProbes 解析原生 nmap-service-probes 文本
// 无法解析的行记录警告后跳过，文件中没有任何探针时返回错误
func ParseServiceProbes(content string) ([]*Probe, error) {
	var (
		probes  []*Probe
		current *Probe
	)

	for lineNo, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "Probe ") {
			p, err := parseProbeLine(line)
			if err != nil {
				logger.Warnf("Failed to parse probe line %d: %v", lineNo+1, err)
				current = nil
				continue
			}
			current = p
			probes = append(probes, p)
			continue
		}

		if current == nil {
			continue
		}

		directive, rest, _ := strings.Cut(line, " ")
		var err error
		switch directive {
		case "match", "softmatch":
			var rule *MatchRule
			rule, err = parseMatchLine(rest, directive == "softmatch")
			if err == nil {
				current.Matches = append(current.Matches, rule)
			}
		case "ports":
			current.Ports, err = parsePortSpec(rest)
		case "sslports":
			current.SSLPorts, err = parsePortSpec(rest)
		case "rarity":
			current.Rarity, err = strconv.Atoi(strings.TrimSpace(rest))
		case "fallback":
			current.Fallback = strings.TrimSpace(rest)
		case "totalwaitms":
			current.TotalWaitMS, err = parseMillis(rest)
		case "tcpwrappedms":
			current.TCPWrappedMS, err = parseMillis(rest)
		}
		if err != nil {
			logger.Warnf("Skip line %d of probe %s: %v", lineNo+1, current.DirectiveName, err)
		}
	}

	if len(probes) == 0 {
		return nil, errNoProbes
	}
	for _, p := range probes {
		p.indexPorts()
	}
	return probes, nil
}

func parseProbeLine(line string) (*Probe, error) {
	matches := probeRegexp.FindStringSubmatch(line)
	if len(matches) != 4 {
		return nil, errors.New("invalid probe format")
	}

	directive, err := UnescapeDirective(matches[3])
	if err != nil {
		return nil, err
	}

	return &Probe{
		Protocol:      matches[1],
		DirectiveName: matches[2],
		Directive:     directive,
	}, nil
}

// parseMatchLine 解析 "<service> m<d><pattern><d>[is] <versioninfo>"，分隔符 d 任意
func parseMatchLine(line string, soft bool) (*MatchRule, error) {
	service, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || service == "" {
		return nil, errors.New("missing service name")
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 3 || rest[0] != 'm' {
		return nil, fmt.Errorf("invalid match pattern for %s", service)
	}

	delimiter := rest[1]
	body := rest[2:]
	end := strings.IndexByte(body, delimiter)
	if end == -1 {
		return nil, fmt.Errorf("unterminated pattern for %s", service)
	}
	pattern := body[:end]
	rest = body[end+1:]

	flagEnd := 0
	for flagEnd < len(rest) && (rest[flagEnd] == 'i' || rest[flagEnd] == 's') {
		flagEnd++
	}
	flags := rest[:flagEnd]
	versionInfo := strings.TrimSpace(rest[flagEnd:])

	rule, err := compileRule(service, pattern, flags, versionInfo, soft)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", service, err)
	}
	return rule, nil
}

func parseMillis(s string) (*uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
