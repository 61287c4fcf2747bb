/**
 * 主动探针服务识别
 * @date: 2026.10.15
 * @description: 两阶段有界并发探测。第一阶段只跑端口匹配的探针，全部落空时第二阶段再跑其余探针
 */
package service_probe

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wisdark/observer-ward/internal/core/lib/network/dialer"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

const (
	DefaultProbeWidth = 16
	DefaultRuleWidth  = 100
	DefaultReadSize   = 4096
)

// Scanner 探针扫描器，除配置外无状态，可并发使用
type Scanner struct {
	db         *probedb.Database
	timeout    time.Duration
	probeWidth int
	ruleWidth  int
	readSize   int
	ttl        int
	dialer     dialer.Dialer // 为空时使用全局拨号器
}

// Option 扫描器选项
type Option func(*Scanner)

// WithProbeWidth 探针并发宽度
func WithProbeWidth(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.probeWidth = n
		}
	}
}

// WithRuleWidth 单个探针的规则匹配并发宽度
func WithRuleWidth(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.ruleWidth = n
		}
	}
}

// WithReadSize 单次读取的缓冲大小
func WithReadSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.readSize = n
		}
	}
}

// WithTTL 连接的 TTL / hop limit
func WithTTL(ttl int) Option {
	return func(s *Scanner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithDialer 指定拨号器
func WithDialer(d dialer.Dialer) Option {
	return func(s *Scanner) {
		s.dialer = d
	}
}

// NewScanner 创建扫描器，timeoutMS 同时作为连接、写、读超时
func NewScanner(db *probedb.Database, timeoutMS uint64, opts ...Option) *Scanner {
	s := &Scanner{
		db:         db,
		timeout:    time.Duration(timeoutMS) * time.Millisecond,
		probeWidth: DefaultProbeWidth,
		ruleWidth:  DefaultRuleWidth,
		readSize:   DefaultReadSize,
		ttl:        dialer.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit 一条命中的规则
type Hit struct {
	Probe   string              `json:"probe"`
	Service string              `json:"service"`
	Phase   int                 `json:"phase"`
	Soft    bool                `json:"soft,omitempty"`
	Version probedb.VersionInfo `json:"version,omitempty"`
}

// Result 一次扫描的明细
type Result struct {
	Target   string          `json:"target"`
	Services utils.StringSet `json:"services"`
	Hits     []Hit           `json:"hits"`
	Phase    int             `json:"phase"`    // 最后执行的阶段
	Executed int             `json:"executed"` // 实际执行的探针数
	Duration time.Duration   `json:"duration"`
}

// Scan 识别目标服务，addr 为 host:port
// 总是返回集合，单个探针的网络错误不会中断扫描
func (s *Scanner) Scan(ctx context.Context, addr string) utils.StringSet {
	return s.ScanDetail(ctx, addr).Services
}

// ScanDetail 与 Scan 相同，额外返回每个探针的命中明细
// 阶段内不取消：已启动的探针都会跑完或各自超时
func (s *Scanner) ScanDetail(ctx context.Context, addr string) *Result {
	start := time.Now()
	result := &Result{Target: addr, Services: utils.NewStringSet()}

	port, err := targetPort(addr)
	if err != nil {
		logger.WithFields(map[string]interface{}{"target": addr, "error": err.Error()}).Warn("invalid scan target")
		logger.LogScan(addr, "failed", 0, time.Since(start), nil)
		return result
	}

	in, ex := s.db.Partition(port)

	result.Phase = 1
	result.Hits = s.runPhase(ctx, addr, in, 1)
	result.Executed = len(in)

	if len(result.Hits) == 0 {
		result.Phase = 2
		result.Hits = s.runPhase(ctx, addr, ex, 2)
		result.Executed += len(ex)
	}

	sort.Slice(result.Hits, func(i, j int) bool {
		if result.Hits[i].Probe != result.Hits[j].Probe {
			return result.Hits[i].Probe < result.Hits[j].Probe
		}
		return result.Hits[i].Service < result.Hits[j].Service
	})
	for _, h := range result.Hits {
		result.Services.Add(h.Service)
	}
	result.Duration = time.Since(start)

	logger.LogScan(addr, "completed", result.Services.Len(), result.Duration, map[string]interface{}{
		"phase":    result.Phase,
		"executed": result.Executed,
	})
	return result
}

// runPhase 以固定宽度执行一组探针，一个完成立即补上下一个
func (s *Scanner) runPhase(ctx context.Context, addr string, probes []*probedb.Probe, phase int) []Hit {
	var (
		mu   sync.Mutex
		hits []Hit
		g    errgroup.Group
	)
	g.SetLimit(s.probeWidth)

	for _, p := range probes {
		p := p
		g.Go(func() error {
			resp := s.execute(ctx, addr, p)
			found := s.matchRules(p, resp, phase)
			if len(found) > 0 {
				mu.Lock()
				hits = append(hits, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return hits
}

func (s *Scanner) getDialer() dialer.Dialer {
	if s.dialer != nil {
		return s.dialer
	}
	return dialer.Get()
}

// execute 单个探针：新建连接、发送指令、读取一次
// 任何失败都折叠为空响应
func (s *Scanner) execute(ctx context.Context, addr string, p *probedb.Probe) []byte {
	log := logger.WithFields(map[string]interface{}{
		"target": addr,
		"probe":  p.DirectiveName,
	})

	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	conn, err := s.getDialer().DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		log.WithField("error", err.Error()).Debug("probe connect failed")
		return nil
	}
	defer conn.Close()

	if err := dialer.ApplySocketPolicy(conn, s.ttl); err != nil {
		log.WithField("error", err.Error()).Debug("apply socket policy failed")
	}

	if len(p.Directive) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
		if _, err := conn.Write(p.Directive); err != nil {
			log.WithField("error", err.Error()).Debug("probe write failed")
			return nil
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	buf := make([]byte, s.readSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil {
			log.WithField("error", err.Error()).Debug("probe read failed")
		}
		return nil
	}
	return buf[:n]
}

func targetPort(addr string) (uint16, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(port), nil
}
