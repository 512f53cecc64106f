package logger

import (
	"Parley/internal/api/config"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// accessSkipPaths 探活请求不记访问日志
var accessSkipPaths = []string{"/api/ping"}

type accessEntry struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	TraceID     string `json:"trace_id,omitempty"`
	LogToken    string `json:"log_token,omitempty"`
	TargetIndex string `json:"target_index,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	ClientIP    string `json:"client_ip"`
	Error       string `json:"error,omitempty"`
}

// SetupGin 挂载访问日志与 panic 恢复
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: accessSkipPaths,
		Formatter: formatAccess,
	}))
	r.Use(gin.CustomRecoveryWithWriter(LogWriter, func(c *gin.Context, err any) {
		c.AbortWithStatusJSON(500, gin.H{"code": 500, "message": "Internal server error", "data": nil})
	}))
}

func formatAccess(p gin.LogFormatterParams) string {
	level := "INFO"
	switch {
	case p.StatusCode >= 500:
		level = "ERROR"
	case p.StatusCode >= 400:
		level = "WARN"
	}

	entry := accessEntry{
		Time:        p.TimeStamp.Format(time.RFC3339),
		Level:       level,
		Msg:         "GIN_ACCESS",
		TraceID:     accessTraceID(p),
		LogToken:    config.Cfg.Logstash.Token,
		TargetIndex: config.Cfg.Logstash.Index,
		Method:      p.Method,
		Path:        p.Path,
		Status:      p.StatusCode,
		LatencyMs:   p.Latency.Milliseconds(),
		ClientIP:    p.ClientIP,
		Error:       p.ErrorMessage,
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}

func accessTraceID(p gin.LogFormatterParams) string {
	if id, ok := p.Keys[TraceIDKey].(string); ok && id != "" {
		return id
	}
	if p.Request != nil {
		return TraceID(p.Request.Context())
	}
	return ""
}
