package dialer

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// DefaultTTL 探测连接的 TTL / hop limit
const DefaultTTL = 100

// ApplySocketPolicy 关闭 Nagle 并设置 TTL
// 仅对直连 TCP 生效，代理连接的底层套接字不归本端控制，直接跳过
func ApplySocketPolicy(conn net.Conn, ttl int) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcp.SetNoDelay(true); err != nil {
		return fmt.Errorf("set nodelay: %w", err)
	}

	remote, _ := tcp.RemoteAddr().(*net.TCPAddr)
	if remote != nil && remote.IP.To4() == nil {
		if err := ipv6.NewConn(tcp).SetHopLimit(ttl); err != nil {
			return fmt.Errorf("set hop limit: %w", err)
		}
		return nil
	}

	if err := ipv4.NewConn(tcp).SetTTL(ttl); err != nil {
		return fmt.Errorf("set ttl: %w", err)
	}
	return nil
}
