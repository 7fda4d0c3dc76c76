// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler 处理健康检查请求。
type HealthHandler struct {
	version string
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Check 返回服务的存活状态，无需认证。
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Pensieve API",
		"version": h.version,
		"status":  "healthy",
	})
}
