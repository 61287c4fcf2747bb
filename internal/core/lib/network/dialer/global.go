package dialer

import (
	"sync"
	"time"
)

var (
	globalMu     sync.RWMutex
	globalDialer Dialer = NewDefaultDialer(3 * time.Second)
)

// SetGlobalDialer 设置全局拨号器 (例如配置了代理时)
func SetGlobalDialer(d Dialer) {
	if d == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDialer = d
}

// Get 获取全局拨号器
func Get() Dialer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalDialer
}
