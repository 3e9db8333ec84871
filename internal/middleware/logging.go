package middleware

import (
	"bytes"
	"io"
	"time"

	"dealer_crm_go/pkg/log"

	"github.com/gin-gonic/gin"
)

// BodyLogWriter 用于记录请求和响应的body
type BodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w *BodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 作为gin.HandlerFunc，记录请求和响应的body
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// 读取并重新缓存请求体，后续处理函数才能正常读取
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		// 使用自定义的 ResponseWriter 捕获响应
		blw := &BodyLogWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = blw

		c.Next()

		latency := time.Since(startTime)

		log.Infow("HTTP request",
			"latency", latency,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_body", string(requestBody),
			"response_body", blw.body.String(),
		)
	}
}
