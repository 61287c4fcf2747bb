/**
 * HTTP 服务
 * @date: 2026.10.15
 * @description: 以 HTTP 接口暴露服务识别与提取能力，指纹库在启动时加载一次并在请求间共享
 */
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wisdark/observer-ward/internal/config"
	"github.com/wisdark/observer-ward/internal/core/scanner/service_probe"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
)

// Server HTTP 服务
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	db         *probedb.Database
	scanOpts   []service_probe.Option
}

// Option 服务选项
type Option func(*Server)

// WithScanOptions 追加扫描器选项，例如指定拨号器
func WithScanOptions(opts ...service_probe.Option) Option {
	return func(s *Server) {
		s.scanOpts = append(s.scanOpts, opts...)
	}
}

// New 创建服务并注册路由
func New(cfg *config.Config, db *probedb.Database, opts ...Option) *Server {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		cfg:    cfg,
		db:     db,
	}
	if sc := cfg.Scanner; sc != nil {
		s.scanOpts = append(s.scanOpts,
			service_probe.WithProbeWidth(sc.ProbeWidth),
			service_probe.WithRuleWidth(sc.RuleWidth),
			service_probe.WithReadSize(sc.ReadSize),
		)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), AccessLog())
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Engine 返回 gin 引擎，测试中直接驱动
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start 后台启动监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	logger.Infof("observer-ward server listening on %s", ln.Addr())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped unexpectedly: ", err)
		}
	}()
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping observer-ward server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop http server: %w", err)
	}
	return nil
}
