package service_probe

import (
	"github.com/sourcegraph/conc/pool"

	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
)

// matchRules 并发评估探针的全部规则，收集所有命中，不在首个命中处停止
func (s *Scanner) matchRules(p *probedb.Probe, resp []byte, phase int) []Hit {
	if len(p.Matches) == 0 {
		return nil
	}
	subject := probedb.Latin1(resp)

	rp := pool.NewWithResults[*Hit]().WithMaxGoroutines(s.ruleWidth)
	for _, rule := range p.Matches {
		rule := rule
		rp.Go(func() *Hit {
			if !rule.MatchString(subject) {
				return nil
			}
			return &Hit{
				Probe:   p.DirectiveName,
				Service: rule.Service,
				Phase:   phase,
				Soft:    rule.Soft,
				Version: rule.Version(subject),
			}
		})
	}

	var hits []Hit
	for _, h := range rp.Wait() {
		if h != nil {
			hits = append(hits, *h)
		}
	}
	return hits
}
