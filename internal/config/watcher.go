package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher 配置文件监听器
// 文件变化后重新加载配置并通知回调；指纹库不参与热重载
type ConfigWatcher struct {
	configDir   string
	envPrefix   string
	configFile  string
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []ConfigChangeCallback
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	reloadDelay time.Duration
	lastReload  time.Time
	onError     func(error)
}

// ConfigChangeCallback 配置变更回调函数
type ConfigChangeCallback func(oldConfig, newConfig *Config) error

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(configDir string) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ConfigWatcher{
		configDir:   configDir,
		envPrefix:   DefaultEnvPrefix,
		watcher:     watcher,
		ctx:         ctx,
		cancel:      cancel,
		reloadDelay: 500 * time.Millisecond, // 防抖延迟
		onError:     func(error) {},
	}, nil
}

// SetReloadDelay 设置防抖延迟
func (cw *ConfigWatcher) SetReloadDelay(d time.Duration) {
	cw.reloadDelay = d
}

// OnError 设置重载失败处理函数
func (cw *ConfigWatcher) OnError(fn func(error)) {
	if fn != nil {
		cw.onError = fn
	}
}

// Start 启动配置监听
func (cw *ConfigWatcher) Start() error {
	loader := NewConfigLoader(cw.configDir, cw.envPrefix)
	config, err := loader.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	cw.configFile = loader.GetConfigPath()
	if cw.configFile == "" {
		return fmt.Errorf("no config file found under %s", cw.configDir)
	}

	cw.mu.Lock()
	cw.config = config
	cw.mu.Unlock()

	// 监听目录而不是文件，编辑器的原子替换会让文件句柄失效
	if err := cw.watcher.Add(filepath.Dir(cw.configFile)); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", cw.configFile, err)
	}

	go cw.watchLoop()
	return nil
}

// Stop 停止配置监听
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()
	return cw.watcher.Close()
}

// GetConfig 获取当前配置
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// AddCallback 添加配置变更回调
func (cw *ConfigWatcher) AddCallback(callback ConfigChangeCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleFileEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.onError(fmt.Errorf("config watcher error: %w", err))
		}
	}
}

func (cw *ConfigWatcher) handleFileEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(cw.configFile) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	now := time.Now()
	if now.Sub(cw.lastReload) < cw.reloadDelay {
		return
	}
	cw.lastReload = now

	// 延迟重载，等待文件写入完成
	time.AfterFunc(cw.reloadDelay, func() {
		if err := cw.reloadConfig(); err != nil {
			cw.onError(err)
		}
	})
}

func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := NewConfigLoader(cw.configDir, cw.envPrefix).LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	cw.mu.RLock()
	oldConfig := cw.config
	callbacks := append([]ConfigChangeCallback(nil), cw.callbacks...)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(oldConfig, newConfig); err != nil {
			return fmt.Errorf("config change callback failed: %w", err)
		}
	}

	cw.mu.Lock()
	cw.config = newConfig
	cw.mu.Unlock()
	return nil
}

// WatchConfig 监听配置变更（便捷函数）
func WatchConfig(configDir string, callback ConfigChangeCallback) (*ConfigWatcher, error) {
	watcher, err := NewConfigWatcher(configDir)
	if err != nil {
		return nil, err
	}

	if callback != nil {
		watcher.AddCallback(callback)
	}

	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	return watcher, nil
}

// LogOnlyChange 只接受日志段的变更
// 其余段与旧配置保持一致，运行中的扫描参数和指纹库不受影响
func LogOnlyChange(oldConfig, newConfig *Config) *Config {
	merged := *oldConfig
	merged.Log = newConfig.Log
	return &merged
}
