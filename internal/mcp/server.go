// Package mcp 将对话存储的全部操作作为 MCP 工具暴露给 agent 会话。
//
// 工具面没有 Authorization 头可用，身份以显式的 email 参数传入，
// token 由 register/login/set_api_token 写入会话缓存，后续调用从缓存取回。
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pensieve-go/internal/model"
	"pensieve-go/internal/repository"
	"pensieve-go/internal/service"
)

// Server wraps the MCP SDK server and the shared business services.
type Server struct {
	mcpServer     *mcp.Server
	users         service.UserService
	conversations service.ConversationService
	sessions      repository.SessionRepository
}

// Config holds MCP server configuration.
type Config struct {
	Name          string
	Version       string
	Users         service.UserService
	Conversations service.ConversationService
	Sessions      repository.SessionRepository
}

// NewServer 创建一个新的 MCP 工具服务。
// 工具处理函数直接调用与 REST 面相同的 service 层，不重复业务逻辑。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}
	if cfg.Version == "" {
		return nil, errors.New("server version is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer:     mcpServer,
		users:         cfg.Users,
		conversations: cfg.Conversations,
		sessions:      cfg.Sessions,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport.
// This is a blocking call that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// SSEHandler 返回可挂载到 HTTP 路由上的 SSE 传输处理器。
func (s *Server) SSEHandler() http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// authenticate 用缓存中的 token 将 email 解析为身份。
// 缓存缺失、token 失效或身份已不存在都作为认证失败返回。
func (s *Server) authenticate(ctx context.Context, email string) (*model.User, error) {
	tokenString, err := s.sessions.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoSession) {
			return nil, errors.New("not logged in: call login or set_api_token first")
		}
		return nil, err
	}
	user, err := s.users.Authenticate(tokenString)
	if err != nil {
		return nil, errors.New("session expired: call login again")
	}
	return user, nil
}

// errorResult 构造一个携带 IsError 标记的文本结果。
// 业务失败走这里返回，协议层错误（返回 error）只留给系统故障。
func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// textResult 构造一个纯文本成功结果。
func textResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// jsonResult 将任意值序列化为 JSON 文本结果。
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
