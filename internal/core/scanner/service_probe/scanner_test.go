package service_probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisdark/observer-ward/internal/core/lib/network/dialer"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// fakeTarget 基于 net.Pipe 的假目标，按收到的指令返回响应，并记录执行情况
type fakeTarget struct {
	mu       sync.Mutex
	received []string
	respond  func(directive string) string
	delay    time.Duration

	dials    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTarget) dialFunc() dialer.Dialer {
	return dialer.DialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		f.dials.Add(1)
		cur := f.inFlight.Add(1)
		for {
			old := f.peak.Load()
			if cur <= old || f.peak.CompareAndSwap(old, cur) {
				break
			}
		}

		client, server := net.Pipe()
		go f.serve(server)
		return &trackedConn{Conn: client, onClose: func() { f.inFlight.Add(-1) }}, nil
	})
}

func (f *fakeTarget) serve(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 1024)
	_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	n, _ := conn.Read(buf)
	directive := string(buf[:n])

	f.mu.Lock()
	f.received = append(f.received, directive)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.respond != nil {
		if resp := f.respond(directive); resp != "" {
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = conn.Write([]byte(resp))
		}
	}
}

func (f *fakeTarget) directives() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

type trackedConn struct {
	net.Conn
	once    sync.Once
	onClose func()
}

func (c *trackedConn) Close() error {
	c.once.Do(c.onClose)
	return c.Conn.Close()
}

func loadDB(t *testing.T, doc string) *probedb.Database {
	t.Helper()
	db, err := probedb.LoadBytes([]byte(doc), probedb.FormatJSON)
	require.NoError(t, err)
	return db
}

const phaseDB = `[
  {"directive_name":"A","protocol":"TCP","directive_str":"probe-a","ports":[80],
   "matches":[{"service":"svc-a","pattern":"^resp-a","version_info":""}]},
  {"directive_name":"B","protocol":"TCP","directive_str":"probe-b","ports":[],
   "matches":[{"service":"svc-b","pattern":"^resp-b","version_info":""}]}
]`

func echoResponder(directive string) string {
	return strings.Replace(directive, "probe-", "resp-", 1)
}

func TestScanPhaseOneHitSkipsPhaseTwo(t *testing.T) {
	target := &fakeTarget{respond: echoResponder}
	s := NewScanner(loadDB(t, phaseDB), 1000, WithDialer(target.dialFunc()))

	res := s.ScanDetail(context.Background(), "10.0.0.1:80")
	assert.True(t, res.Services.Equal(utils.NewStringSet("svc-a")))
	assert.Equal(t, 1, res.Phase)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, []string{"probe-a"}, target.directives())
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "A", res.Hits[0].Probe)
}

func TestScanFallsBackToPhaseTwo(t *testing.T) {
	// A 的响应不匹配自身规则
	target := &fakeTarget{respond: func(d string) string {
		if d == "probe-a" {
			return "nothing"
		}
		return echoResponder(d)
	}}
	s := NewScanner(loadDB(t, phaseDB), 1000, WithDialer(target.dialFunc()))

	res := s.ScanDetail(context.Background(), "10.0.0.1:80")
	assert.True(t, res.Services.Equal(utils.NewStringSet("svc-b")))
	assert.Equal(t, 2, res.Phase)
	assert.ElementsMatch(t, []string{"probe-a", "probe-b"}, target.directives())
}

func TestScanUnmatchedPortRunsEverythingInPhaseTwo(t *testing.T) {
	target := &fakeTarget{respond: echoResponder}
	s := NewScanner(loadDB(t, phaseDB), 1000, WithDialer(target.dialFunc()))

	res := s.ScanDetail(context.Background(), "10.0.0.1:9999")
	assert.Equal(t, []string{"svc-a", "svc-b"}, res.Services.Sorted())
	assert.Equal(t, 2, res.Phase)
	assert.Equal(t, 2, res.Executed)
}

func TestScanBoundedConcurrency(t *testing.T) {
	const n = 40
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"directive_name":"p%d","protocol":"TCP","directive_str":"d%d","ports":[],
		  "matches":[{"service":"never","pattern":"^no-such-banner$","version_info":""}]}`, i, i)
	}
	b.WriteString("]")

	target := &fakeTarget{respond: func(string) string { return "banner" }, delay: 20 * time.Millisecond}
	s := NewScanner(loadDB(t, b.String()), 1000, WithDialer(target.dialFunc()), WithProbeWidth(4))

	res := s.ScanDetail(context.Background(), "10.0.0.1:1")
	assert.Zero(t, res.Services.Len())
	assert.Equal(t, int32(n), target.dials.Load())
	assert.Equal(t, int32(4), target.peak.Load())
	assert.Len(t, target.directives(), n)
}

func TestScanCollectsEveryMatchingRule(t *testing.T) {
	doc := `[{"directive_name":"NULL","protocol":"TCP","directive_str":"","ports":[21],
	  "matches":[
	    {"service":"ftp","pattern":"^220","version_info":""},
	    {"service":"vsftpd","pattern":"vsFTPd ([\\d.]+)","version_info":"p/vsftpd/ v/$1/"},
	    {"service":"smtp","pattern":"^220 .*ESMTP","version_info":""}
	  ]}]`
	target := &fakeTarget{respond: func(string) string { return "220 (vsFTPd 3.0.5)\r\n" }}
	s := NewScanner(loadDB(t, doc), 1000, WithDialer(target.dialFunc()), WithRuleWidth(2))

	res := s.ScanDetail(context.Background(), "10.0.0.1:21")
	assert.Equal(t, []string{"ftp", "vsftpd"}, res.Services.Sorted())
	for _, h := range res.Hits {
		if h.Service == "vsftpd" {
			assert.Equal(t, "vsftpd", h.Version.Product)
			assert.Equal(t, "3.0.5", h.Version.Version)
		}
	}
}

func TestScanConnectFailureYieldsEmptySet(t *testing.T) {
	refused := dialer.DialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, fmt.Errorf("connection refused")
	})
	s := NewScanner(loadDB(t, phaseDB), 100, WithDialer(refused))

	services := s.Scan(context.Background(), "10.0.0.1:80")
	require.NotNil(t, services)
	assert.Zero(t, services.Len())
}

func TestScanInvalidTarget(t *testing.T) {
	target := &fakeTarget{respond: echoResponder}
	s := NewScanner(loadDB(t, phaseDB), 100, WithDialer(target.dialFunc()))

	assert.Zero(t, s.Scan(context.Background(), "no-port").Len())
	assert.Zero(t, target.dials.Load())
}

func TestScanSSHOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_8.9\r\n"))
			_ = conn.Close()
		}
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	doc := fmt.Sprintf(`[{"directive_name":"null","protocol":"TCP","directive_str":"","ports":[%d],
	  "matches":[{"service":"ssh","pattern":"^SSH-","version_info":""}]}]`, p)

	s := NewScanner(loadDB(t, doc), 2000)
	services := s.Scan(context.Background(), ln.Addr().String())
	assert.True(t, services.Equal(utils.NewStringSet("ssh")))
}

func TestOptionsIgnoreNonPositive(t *testing.T) {
	s := NewScanner(probedb.New(nil), 10, WithProbeWidth(0), WithRuleWidth(-1), WithReadSize(0), WithTTL(0))
	assert.Equal(t, DefaultProbeWidth, s.probeWidth)
	assert.Equal(t, DefaultRuleWidth, s.ruleWidth)
	assert.Equal(t, DefaultReadSize, s.readSize)
	assert.Equal(t, dialer.DefaultTTL, s.ttl)
	assert.Equal(t, 10*time.Millisecond, s.timeout)
}
