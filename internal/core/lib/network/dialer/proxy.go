package dialer

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/wisdark/observer-ward/internal/config"
)

// ProxyDialer SOCKS5 代理拨号器
type ProxyDialer struct {
	ProxyURL *url.URL
	Timeout  time.Duration
	forward  proxy.Dialer
}

// NewProxyDialer 解析 socks5://[user:pass@]host:port
func NewProxyDialer(proxyAddr string, timeout time.Duration) (*ProxyDialer, error) {
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	if u.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme: %s (only socks5 is supported for raw tcp)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address: missing host")
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	forward, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}

	return &ProxyDialer{
		ProxyURL: u,
		Timeout:  timeout,
		forward:  forward,
	}, nil
}

func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := d.forward.Dial(network, address)
		ch <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		// 晚到的连接需要关闭
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		return res.conn, res.err
	}
}

// FromConfig 按代理配置构造拨号器，未启用代理时返回直连拨号器
func FromConfig(cfg *config.ProxyConfig, timeout time.Duration) (Dialer, error) {
	if cfg == nil || !cfg.Enabled {
		return NewDefaultDialer(timeout), nil
	}

	u := &url.URL{Scheme: "socks5", Host: cfg.Address}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return NewProxyDialer(u.String(), timeout)
}
