// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pensieve-go/internal/service"
)

// APIHandler 处理前端面板使用的 /api 路由。
type APIHandler struct {
	conversationService service.ConversationService
}

// NewAPIHandler 创建一个新的 APIHandler 实例。
func NewAPIHandler(conversationService service.ConversationService) *APIHandler {
	return &APIHandler{conversationService: conversationService}
}

// Me 返回当前登录身份的基础信息，不包含密码哈希。
func (h *APIHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

// ListConversations 返回含消息正文的对话列表，按创建时间降序。
// 面板需要直接渲染正文，因此这里不走摘要视图；分页参数沿用 limit/skip。
func (h *APIHandler) ListConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 20)
	skip := intQuery(c, "skip", 0)

	convs, err := h.conversationService.ListWithMessages(c.Request.Context(), user.ID, limit, skip)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}
