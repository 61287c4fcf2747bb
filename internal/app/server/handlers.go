package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wisdark/observer-ward/internal/core/scanner/service_probe"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/extractor"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
	"github.com/wisdark/observer-ward/internal/pkg/utils"
	"github.com/wisdark/observer-ward/internal/pkg/version"
)

// MaxTimeoutMS 单个接口请求允许的最大探针超时
const MaxTimeoutMS = 60000

type scanRequest struct {
	Target    string `json:"target" binding:"required"`
	TimeoutMS uint64 `json:"timeout_ms"`
}

type extractRequest struct {
	Extractor json.RawMessage   `json:"extractor" binding:"required"`
	Corpus    string            `json:"corpus"`
	Header    string            `json:"header"`
	Body      string            `json:"body"`
	Part      string            `json:"part"`
	Version   map[string]string `json:"version"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/probes/stats", s.handleProbeStats)
	v1.POST("/scan", s.handleScan)
	v1.POST("/extract", s.handleExtract)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.GetVersion(),
		"probes":  s.db.Len(),
	})
}

func (s *Server) handleProbeStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.db.Stats())
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}
	if _, _, err := net.SplitHostPort(req.Target); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid target", Detail: err.Error()})
		return
	}

	timeout := req.TimeoutMS
	if timeout == 0 && s.cfg.Scanner != nil {
		timeout = s.cfg.Scanner.TimeoutMS
	}
	if timeout == 0 || timeout > MaxTimeoutMS {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid timeout_ms"})
		return
	}

	scanner := service_probe.NewScanner(s.db, timeout, s.scanOpts...)
	c.JSON(http.StatusOK, scanner.ScanDetail(c.Request.Context(), req.Target))
}

func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}

	def, err := extractor.ParseExtractor(req.Extractor)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid extractor", Detail: err.Error()})
		return
	}
	if req.Part != "" {
		part, err := extractor.ParsePart(req.Part)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid part", Detail: err.Error()})
			return
		}
		def.Part = part
	}

	compiled, err := extractor.Compile(def)
	if err != nil {
		detail := err.Error()
		var ce *extractor.CompileError
		if errors.As(err, &ce) {
			logger.WithField("extractor", ce.Name).Debug("extractor compile failed: ", ce.Err)
		}
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "compile failed", Detail: detail})
		return
	}

	var result extractor.Result
	if req.Header == "" && req.Body == "" {
		values, versions := compiled.Extract(req.Corpus, req.Version)
		result = extractor.Result{Name: def.Name, Internal: def.Internal, Values: values, Versions: versions}
	} else {
		result = compiled.Run(extractor.Response{Header: req.Header, Body: req.Body, Raw: req.Corpus}, req.Version)
	}
	c.JSON(http.StatusOK, externalView(result))
}

// externalView 内部提取器只返回元信息，不暴露提取值
func externalView(result extractor.Result) extractor.Result {
	if len(extractor.FilterExternal([]extractor.Result{result})) > 0 {
		return result
	}
	return extractor.Result{Name: result.Name, Internal: true, Values: utils.NewStringSet()}
}
