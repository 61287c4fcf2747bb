package logger

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LogType 日志类型
type LogType string

const (
	// ScanLog 扫描任务执行情况
	ScanLog LogType = "scan"
	// AccessLog HTTP 访问
	AccessLog LogType = "access"
)

// LogScan 记录一次扫描的结构化日志
// status: running / completed / failed
func LogScan(target, status string, hits int, duration time.Duration, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":     ScanLog,
		"target":   target,
		"status":   status,
		"hits":     hits,
		"duration": duration.Milliseconds(),
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	entry := LoggerInstance.logger.WithFields(fields)
	switch status {
	case "completed":
		entry.Info(fmt.Sprintf("Scan completed on %s", target))
	case "failed":
		entry.Error(fmt.Sprintf("Scan failed on %s", target))
	default:
		entry.Debug(fmt.Sprintf("Scan %s on %s", status, target))
	}
}

// LogAccess 记录 HTTP 访问日志
func LogAccess(method, path, clientIP string, statusCode int, latency time.Duration) {
	if LoggerInstance == nil {
		return
	}

	LoggerInstance.logger.WithFields(logrus.Fields{
		"type":          AccessLog,
		"method":        method,
		"path":          path,
		"client_ip":     clientIP,
		"status_code":   statusCode,
		"response_time": latency.Milliseconds(),
	}).Info("HTTP request processed")
}
