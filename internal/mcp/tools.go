package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pensieve-go/internal/model"
)

// registerTools 向 MCP 服务注册全部工具。
func (s *Server) registerTools() error {
	type registration func() error
	for _, register := range []registration{
		s.registerRegister,
		s.registerLogin,
		s.registerSetAPIToken,
		s.registerSaveConversation,
		s.registerLoadConversation,
		s.registerListConversations,
		s.registerSearchConversations,
		s.registerAppendToConversation,
		s.registerUpdateConversation,
		s.registerDeleteConversation,
	} {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// addTool 推导输入 schema 并注册单个工具。
func addTool[In any](s *Server, name, description string, handler func(ctx context.Context, in In) (*mcp.CallToolResult, error)) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema for %s: %w", name, err)
	}

	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		result, err := handler(ctx, in)
		if err != nil {
			// 系统级故障交给协议层
			return nil, nil, err
		}
		return result, nil, nil
	})
	return nil
}

// RegisterInput defines the input schema for the register tool.
type RegisterInput struct {
	Email    string `json:"email" jsonschema:"Email address for the new account"`
	Password string `json:"password" jsonschema:"Password, 6 to 72 bytes"`
}

func (s *Server) registerRegister() error {
	return addTool(s, "register",
		"Register a new account. On success the issued API token is cached for this email, so subsequent tool calls work immediately.",
		func(ctx context.Context, in RegisterInput) (*mcp.CallToolResult, error) {
			tokenString, err := s.users.Register(in.Email, in.Password)
			if err != nil {
				return errorResult("registration failed: %v", err), nil
			}
			if err := s.sessions.Put(ctx, in.Email, tokenString); err != nil {
				return nil, err
			}
			return textResult("Registration successful. The API token has been cached for %s.", in.Email), nil
		})
}

// LoginInput defines the input schema for the login tool.
type LoginInput struct {
	Email    string `json:"email" jsonschema:"Registered email address"`
	Password string `json:"password" jsonschema:"Account password"`
}

func (s *Server) registerLogin() error {
	return addTool(s, "login",
		"Log in with email and password. On success the issued API token is cached for this email.",
		func(ctx context.Context, in LoginInput) (*mcp.CallToolResult, error) {
			tokenString, err := s.users.Login(in.Email, in.Password)
			if err != nil {
				return errorResult("login failed: %v", err), nil
			}
			if err := s.sessions.Put(ctx, in.Email, tokenString); err != nil {
				return nil, err
			}
			return textResult("Login successful. The API token has been cached for %s.", in.Email), nil
		})
}

// SetAPITokenInput defines the input schema for the set_api_token tool.
type SetAPITokenInput struct {
	Email string `json:"email" jsonschema:"Email address the token belongs to"`
	Token string `json:"token" jsonschema:"API token obtained from the REST register/login endpoints"`
}

func (s *Server) registerSetAPIToken() error {
	return addTool(s, "set_api_token",
		"Manually cache an API token for an email. Useful when the token was obtained through the REST API.",
		func(ctx context.Context, in SetAPITokenInput) (*mcp.CallToolResult, error) {
			// 不在此处验证 token，后续每次使用时都会完整校验
			if err := s.sessions.Put(ctx, in.Email, in.Token); err != nil {
				return nil, err
			}
			return textResult("API token cached. Conversations can now be saved and loaded."), nil
		})
}

// SaveConversationInput defines the input schema for the save_conversation tool.
type SaveConversationInput struct {
	Email    string                 `json:"email" jsonschema:"Email of the logged-in account"`
	Messages []model.Message        `json:"messages" jsonschema:"Ordered list of messages, each with role and content"`
	Metadata map[string]interface{} `json:"metadata,omitempty" jsonschema:"Optional free-form metadata"`
}

func (s *Server) registerSaveConversation() error {
	return addTool(s, "save_conversation",
		"Save a conversation (ordered messages plus optional metadata) and return its id.",
		func(ctx context.Context, in SaveConversationInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			conv, err := s.conversations.Create(ctx, user.ID, in.Messages, model.Metadata(in.Metadata))
			if err != nil {
				return errorResult("failed to save conversation: %v", err), nil
			}
			return textResult("Conversation saved. ID: %s", conv.ID), nil
		})
}

// LoadConversationInput defines the input schema for the load_conversation tool.
type LoadConversationInput struct {
	Email          string `json:"email" jsonschema:"Email of the logged-in account"`
	ConversationID string `json:"conversation_id" jsonschema:"ID of the conversation to load"`
}

func (s *Server) registerLoadConversation() error {
	return addTool(s, "load_conversation",
		"Load a stored conversation by id, including all messages.",
		func(ctx context.Context, in LoadConversationInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			conv, err := s.conversations.Get(ctx, user.ID, in.ConversationID)
			if err != nil {
				return errorResult("failed to load conversation: %v", err), nil
			}
			return jsonResult(conv)
		})
}

// ListConversationsInput defines the input schema for the list_conversations tool.
type ListConversationsInput struct {
	Email  string `json:"email" jsonschema:"Email of the logged-in account"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of entries to return, default 50"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of entries to skip, default 0"`
}

func (s *Server) registerListConversations() error {
	return addTool(s, "list_conversations",
		"List stored conversation summaries (id, metadata, timestamps, message count) newest first. Message bodies are not included.",
		func(ctx context.Context, in ListConversationsInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			limit := in.Limit
			if limit <= 0 {
				limit = 50
			}
			offset := in.Offset
			if offset < 0 {
				offset = 0
			}
			summaries, err := s.conversations.List(ctx, user.ID, limit, offset, true)
			if err != nil {
				return errorResult("failed to list conversations: %v", err), nil
			}
			return jsonResult(summaries)
		})
}

// SearchConversationsInput defines the input schema for the search_conversations tool.
type SearchConversationsInput struct {
	Email string `json:"email" jsonschema:"Email of the logged-in account"`
	Query string `json:"query" jsonschema:"Text to search for in message content, case-insensitive"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results, default 20"`
}

func (s *Server) registerSearchConversations() error {
	return addTool(s, "search_conversations",
		"Search message content across stored conversations. Each result includes the first matching message.",
		func(ctx context.Context, in SearchConversationsInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			limit := in.Limit
			if limit <= 0 {
				limit = 20
			}
			results, err := s.conversations.Search(ctx, user.ID, in.Query, limit)
			if err != nil {
				return errorResult("search failed: %v", err), nil
			}
			return jsonResult(results)
		})
}

// AppendToConversationInput defines the input schema for the append_to_conversation tool.
type AppendToConversationInput struct {
	Email          string          `json:"email" jsonschema:"Email of the logged-in account"`
	ConversationID string          `json:"conversation_id" jsonschema:"ID of the conversation to append to"`
	Messages       []model.Message `json:"messages" jsonschema:"Messages to append, in order"`
}

func (s *Server) registerAppendToConversation() error {
	return addTool(s, "append_to_conversation",
		"Append messages to an existing conversation, preserving the existing order.",
		func(ctx context.Context, in AppendToConversationInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			count, err := s.conversations.Append(ctx, user.ID, in.ConversationID, in.Messages)
			if err != nil {
				return errorResult("failed to append messages: %v", err), nil
			}
			return textResult("Added %d messages to conversation %s.", count, in.ConversationID), nil
		})
}

// UpdateConversationInput defines the input schema for the update_conversation tool.
type UpdateConversationInput struct {
	Email          string          `json:"email" jsonschema:"Email of the logged-in account"`
	ConversationID string          `json:"conversation_id" jsonschema:"ID of the conversation to update"`
	Messages       []model.Message `json:"messages" jsonschema:"Replacement message list"`
}

func (s *Server) registerUpdateConversation() error {
	return addTool(s, "update_conversation",
		"Replace the full message list of an existing conversation.",
		func(ctx context.Context, in UpdateConversationInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			if err := s.conversations.Update(ctx, user.ID, in.ConversationID, in.Messages); err != nil {
				return errorResult("failed to update conversation: %v", err), nil
			}
			return textResult("Conversation %s updated.", in.ConversationID), nil
		})
}

// DeleteConversationInput defines the input schema for the delete_conversation tool.
type DeleteConversationInput struct {
	Email          string `json:"email" jsonschema:"Email of the logged-in account"`
	ConversationID string `json:"conversation_id" jsonschema:"ID of the conversation to delete"`
}

func (s *Server) registerDeleteConversation() error {
	return addTool(s, "delete_conversation",
		"Permanently delete a conversation.",
		func(ctx context.Context, in DeleteConversationInput) (*mcp.CallToolResult, error) {
			user, err := s.authenticate(ctx, in.Email)
			if err != nil {
				return errorResult("authentication failed: %v", err), nil
			}
			if err := s.conversations.Delete(ctx, user.ID, in.ConversationID); err != nil {
				return errorResult("failed to delete conversation: %v", err), nil
			}
			return textResult("Conversation %s deleted.", in.ConversationID), nil
		})
}
