package mcp

import (
	"context"
	"testing"
	"time"

	"pensieve-go/internal/model"
	"pensieve-go/internal/repository"
	"pensieve-go/internal/service"
)

type fakeSessions struct {
	tokens map[string]string
}

func (s *fakeSessions) Put(_ context.Context, email, token string) error {
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	s.tokens[email] = token
	return nil
}

func (s *fakeSessions) Get(_ context.Context, email string) (string, error) {
	token, ok := s.tokens[email]
	if !ok {
		return "", repository.ErrNoSession
	}
	return token, nil
}

type fakeUsers struct {
	service.UserService
	authenticateFn func(tokenString string) (*model.User, error)
}

func (f *fakeUsers) Authenticate(tokenString string) (*model.User, error) {
	return f.authenticateFn(tokenString)
}

func TestNewServer_ValidatesConfig(t *testing.T) {
	if _, err := NewServer(Config{Version: "1.0.0"}); err == nil {
		t.Error("missing name should be rejected")
	}
	if _, err := NewServer(Config{Name: "pensieve"}); err == nil {
		t.Error("missing version should be rejected")
	}
	s, err := NewServer(Config{Name: "pensieve", Version: "1.0.0", Sessions: &fakeSessions{}})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if s.mcpServer == nil {
		t.Error("underlying MCP server not constructed")
	}
}

func TestServer_Authenticate(t *testing.T) {
	user := &model.User{ID: "u-1", Email: "me@example.com", CreatedAt: time.Now().UTC()}
	sessions := &fakeSessions{}
	users := &fakeUsers{
		authenticateFn: func(tokenString string) (*model.User, error) {
			if tokenString == "cached-token" {
				return user, nil
			}
			return nil, service.ErrUnauthorized
		},
	}
	s, err := NewServer(Config{Name: "pensieve", Version: "1.0.0", Users: users, Sessions: sessions})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ctx := context.Background()

	// 缓存里没有会话
	if _, err := s.authenticate(ctx, "me@example.com"); err == nil {
		t.Error("authenticate without session should fail")
	}

	if err := sessions.Put(ctx, "me@example.com", "cached-token"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.authenticate(ctx, "me@example.com")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user = %+v", got)
	}

	// set_api_token 盲存的 token 在使用时才校验，坏 token 表现为会话失效
	if err := sessions.Put(ctx, "me@example.com", "stale-token"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.authenticate(ctx, "me@example.com"); err == nil {
		t.Error("stale cached token should fail authentication")
	}
}

func TestErrorResult(t *testing.T) {
	r := errorResult("conversation %s not found", "conv-1")
	if !r.IsError {
		t.Error("IsError not set")
	}
	r = textResult("ok")
	if r.IsError {
		t.Error("IsError set on success result")
	}
	if _, err := jsonResult(map[string]string{"k": "v"}); err != nil {
		t.Errorf("jsonResult failed: %v", err)
	}
}
