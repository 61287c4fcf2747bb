package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wisdark/observer-ward/internal/pkg/logger"
)

// AccessLog 访问日志中间件
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		logger.LogAccess(c.Request.Method, path, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}
