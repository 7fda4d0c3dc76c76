package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pensieve-go/internal/middleware"
	"pensieve-go/internal/model"
	"pensieve-go/internal/service"
)

// mockConversationService 通过函数字段按用例注入行为，未设置的方法不应被调用。
type mockConversationService struct {
	createFn func(ctx context.Context, ownerID string, messages []model.Message, metadata model.Metadata) (*model.Conversation, error)
	listFn   func(ctx context.Context, ownerID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error)
	getFn    func(ctx context.Context, ownerID, id string) (*model.Conversation, error)
	updateFn func(ctx context.Context, ownerID, id string, messages []model.Message) error
	appendFn func(ctx context.Context, ownerID, id string, messages []model.Message) (int, error)
	deleteFn func(ctx context.Context, ownerID, id string) error
	searchFn func(ctx context.Context, ownerID, query string, limit int) ([]model.SearchResult, error)
}

func (m *mockConversationService) Create(ctx context.Context, ownerID string, messages []model.Message, metadata model.Metadata) (*model.Conversation, error) {
	return m.createFn(ctx, ownerID, messages, metadata)
}

func (m *mockConversationService) List(ctx context.Context, ownerID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error) {
	return m.listFn(ctx, ownerID, limit, offset, newestFirst)
}

func (m *mockConversationService) ListWithMessages(context.Context, string, int, int) ([]model.Conversation, error) {
	panic("not wired in this test")
}

func (m *mockConversationService) Get(ctx context.Context, ownerID, id string) (*model.Conversation, error) {
	return m.getFn(ctx, ownerID, id)
}

func (m *mockConversationService) Update(ctx context.Context, ownerID, id string, messages []model.Message) error {
	return m.updateFn(ctx, ownerID, id, messages)
}

func (m *mockConversationService) Append(ctx context.Context, ownerID, id string, messages []model.Message) (int, error) {
	return m.appendFn(ctx, ownerID, id, messages)
}

func (m *mockConversationService) Delete(ctx context.Context, ownerID, id string) error {
	return m.deleteFn(ctx, ownerID, id)
}

func (m *mockConversationService) Search(ctx context.Context, ownerID, query string, limit int) ([]model.SearchResult, error) {
	return m.searchFn(ctx, ownerID, query, limit)
}

var testUser = &model.User{ID: "user-1", Email: "me@example.com", CreatedAt: time.Now().UTC()}

// conversationRouter 按 main.go 的方式挂载路由，token "good-token" 解析为 testUser。
func conversationRouter(convs service.ConversationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	users := &mockUserService{
		authenticateFn: func(tokenString string) (*model.User, error) {
			if tokenString == "good-token" {
				return testUser, nil
			}
			return nil, service.ErrUnauthorized
		},
	}

	r := gin.New()
	h := NewConversationHandler(convs)
	authed := r.Group("/conversations")
	authed.Use(middleware.AuthMiddleware(users))
	{
		authed.POST("", h.Create)
		authed.GET("", h.List)
		authed.GET("/search", h.Search)
		authed.GET("/:id", h.Get)
		authed.PUT("/:id", h.Update)
		authed.POST("/:id/messages", h.Append)
		authed.DELETE("/:id", h.Delete)
	}
	return r
}

func doAuthed(t *testing.T, r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConversationHandler_RequiresBearer(t *testing.T) {
	r := conversationRouter(&mockConversationService{})

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"bad token", "Bearer forged-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestConversationHandler_Create(t *testing.T) {
	svc := &mockConversationService{
		createFn: func(_ context.Context, ownerID string, messages []model.Message, metadata model.Metadata) (*model.Conversation, error) {
			if ownerID != testUser.ID {
				t.Errorf("ownerID = %s, want %s", ownerID, testUser.ID)
			}
			if len(messages) != 1 || messages[0].Content != "hi" {
				t.Errorf("messages = %+v", messages)
			}
			if metadata["topic"] != "greeting" {
				t.Errorf("metadata = %+v", metadata)
			}
			return &model.Conversation{ID: "conv-1"}, nil
		},
	}
	r := conversationRouter(svc)

	w := doAuthed(t, r, http.MethodPost, "/conversations",
		`{"messages": [{"role": "user", "content": "hi"}], "metadata": {"topic": "greeting"}}`, "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["id"] != "conv-1" {
		t.Errorf("id = %q", resp["id"])
	}

	// messages 字段缺失直接 400，不触达业务层
	w = doAuthed(t, r, http.MethodPost, "/conversations", `{"metadata": {}}`, "good-token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status without messages = %d, want 400", w.Code)
	}
}

func TestConversationHandler_CreateInvalidRole(t *testing.T) {
	svc := &mockConversationService{
		createFn: func(context.Context, string, []model.Message, model.Metadata) (*model.Conversation, error) {
			return nil, service.ErrInvalidRole
		},
	}
	w := doAuthed(t, conversationRouter(svc), http.MethodPost, "/conversations",
		`{"messages": [{"role": "robot", "content": "beep"}]}`, "good-token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConversationHandler_ListQueryParams(t *testing.T) {
	var gotLimit, gotOffset int
	var gotNewest bool
	svc := &mockConversationService{
		listFn: func(_ context.Context, _ string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error) {
			gotLimit, gotOffset, gotNewest = limit, offset, newestFirst
			return []model.ConversationSummary{}, nil
		},
	}
	r := conversationRouter(svc)

	w := doAuthed(t, r, http.MethodGet, "/conversations?limit=5&offset=10&sort=created_desc", "", "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLimit != 5 || gotOffset != 10 || !gotNewest {
		t.Errorf("params = (%d, %d, %v), want (5, 10, true)", gotLimit, gotOffset, gotNewest)
	}

	// 缺省与非法参数都回退默认值
	doAuthed(t, r, http.MethodGet, "/conversations?limit=-1&offset=abc", "", "good-token")
	if gotLimit != 50 || gotOffset != 0 || gotNewest {
		t.Errorf("defaults = (%d, %d, %v), want (50, 0, false)", gotLimit, gotOffset, gotNewest)
	}
}

func TestConversationHandler_GetNotFound(t *testing.T) {
	svc := &mockConversationService{
		getFn: func(_ context.Context, ownerID, id string) (*model.Conversation, error) {
			return nil, service.ErrNotFound
		},
	}
	w := doAuthed(t, conversationRouter(svc), http.MethodGet, "/conversations/other-owners-id", "", "good-token")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConversationHandler_Append(t *testing.T) {
	svc := &mockConversationService{
		appendFn: func(_ context.Context, ownerID, id string, messages []model.Message) (int, error) {
			if id != "conv-1" {
				t.Errorf("id = %s", id)
			}
			return len(messages), nil
		},
	}
	r := conversationRouter(svc)

	// 请求体是裸 JSON 数组，不是对象
	w := doAuthed(t, r, http.MethodPost, "/conversations/conv-1/messages",
		`[{"role": "user", "content": "a"}, {"role": "assistant", "content": "b"}]`, "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int    `json:"count"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 2 || resp.Message != "Added 2 messages to conversation" {
		t.Errorf("response = %+v", resp)
	}

	// 对象形式的请求体是格式错误
	w = doAuthed(t, r, http.MethodPost, "/conversations/conv-1/messages",
		`{"messages": []}`, "good-token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status for object body = %d, want 400", w.Code)
	}
}

func TestConversationHandler_UpdateAndDeleteNotFound(t *testing.T) {
	svc := &mockConversationService{
		updateFn: func(context.Context, string, string, []model.Message) error {
			return service.ErrNotFound
		},
		deleteFn: func(context.Context, string, string) error {
			return service.ErrNotFound
		},
	}
	r := conversationRouter(svc)

	w := doAuthed(t, r, http.MethodPut, "/conversations/missing",
		`{"messages": [{"role": "user", "content": "x"}]}`, "good-token")
	if w.Code != http.StatusNotFound {
		t.Errorf("update status = %d, want 404", w.Code)
	}

	w = doAuthed(t, r, http.MethodDelete, "/conversations/missing", "", "good-token")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", w.Code)
	}
}

func TestConversationHandler_Search(t *testing.T) {
	matched := model.Message{Role: model.RoleUser, Content: "found it"}
	svc := &mockConversationService{
		searchFn: func(_ context.Context, ownerID, query string, limit int) ([]model.SearchResult, error) {
			if query != "gopher" || limit != 20 {
				t.Errorf("query/limit = %q/%d", query, limit)
			}
			return []model.SearchResult{{
				ConversationSummary: model.ConversationSummary{ID: "conv-1"},
				MatchedMessage:      &matched,
			}}, nil
		},
	}
	r := conversationRouter(svc)

	w := doAuthed(t, r, http.MethodGet, "/conversations/search?query=gopher", "", "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var results []model.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(results) != 1 || results[0].ID != "conv-1" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].MatchedMessage == nil || results[0].MatchedMessage.Content != "found it" {
		t.Errorf("matched message = %+v", results[0].MatchedMessage)
	}

	// query 参数缺失是 400，不触达业务层
	w = doAuthed(t, r, http.MethodGet, "/conversations/search", "", "good-token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status without query = %d, want 400", w.Code)
	}
}
