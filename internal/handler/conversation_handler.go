// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pensieve-go/internal/model"
	"pensieve-go/internal/service"
	"pensieve-go/pkg/log"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// currentUser 取出 AuthMiddleware 注入的 User 对象。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return nil, false
	}
	user, ok := v.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
		return nil, false
	}
	return user, true
}

// intQuery 解析非负整数查询参数，非法值回退默认。
func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// respondConversationError 将业务错误映射为状态码。
// 非属主访问与资源不存在返回同一个 404，不泄露资源是否存在。
func respondConversationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Errorf("[ConversationHandler] 存储层错误: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CreateConversationRequest 定义了创建对话 API 的请求体结构。
type CreateConversationRequest struct {
	Messages []model.Message `json:"messages" binding:"required"`
	Metadata model.Metadata  `json:"metadata"`
}

// Create 处理创建对话的请求。
func (h *ConversationHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages field is required"})
		return
	}

	conv, err := h.service.Create(c.Request.Context(), user.ID, req.Messages, req.Metadata)
	if err != nil {
		respondConversationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      conv.ID,
		"message": "Conversation created successfully",
	})
}

// List 处理分页获取对话摘要的请求，摘要不携带消息正文。
func (h *ConversationHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	newestFirst := c.Query("sort") == "created_desc"

	summaries, err := h.service.List(c.Request.Context(), user.ID, limit, offset, newestFirst)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Get 处理获取完整对话的请求。
func (h *ConversationHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := h.service.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// UpdateConversationRequest 定义了整体替换消息序列的请求体结构。
type UpdateConversationRequest struct {
	Messages []model.Message `json:"messages" binding:"required"`
}

// Update 处理整体替换消息序列的请求。
func (h *ConversationHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages field is required"})
		return
	}

	if err := h.service.Update(c.Request.Context(), user.ID, c.Param("id"), req.Messages); err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation updated successfully"})
}

// Append 处理向对话追加消息的请求，请求体为消息的 JSON 数组。
func (h *ConversationHandler) Append(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var messages []model.Message
	if err := c.ShouldBindJSON(&messages); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON array of messages"})
		return
	}

	count, err := h.service.Append(c.Request.Context(), user.ID, c.Param("id"), messages)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   count,
		"message": fmt.Sprintf("Added %d messages to conversation", count),
	})
}

// Delete 处理删除对话的请求，删除是永久性的。
func (h *ConversationHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}

// Search 处理在属主范围内检索消息正文的请求。
func (h *ConversationHandler) Search(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	limit := intQuery(c, "limit", 20)

	results, err := h.service.Search(c.Request.Context(), user.ID, query, limit)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
