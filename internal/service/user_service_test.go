package service

import (
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"pensieve-go/internal/model"
	"pensieve-go/pkg/token"
)

// --- 内存实现的 UserRepository ---

type fakeUserRepo struct {
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(user *model.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return gorm.ErrDuplicatedKey
	}
	clone := *user
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) FindByID(id string) (*model.User, error) {
	for _, user := range r.byEmail {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestUserService() (UserService, *fakeUserRepo, *token.JWTManager) {
	repo := newFakeUserRepo()
	jwtManager := token.NewJWTManager("test-secret", 24)
	return NewUserService(repo, jwtManager), repo, jwtManager
}

// --- 测试 ---

func TestUserService_RegisterIssuesValidToken(t *testing.T) {
	svc, _, jwtManager := newTestUserService()

	tokenString, err := svc.Register("a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	subject, err := jwtManager.Verify(tokenString)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if subject != "a@x.com" {
		t.Errorf("token subject = %q, want %q", subject, "a@x.com")
	}
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	svc, repo, _ := newTestUserService()

	if _, err := svc.Register("a@x.com", "secret1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	firstID := repo.byEmail["a@x.com"].ID

	_, err := svc.Register("a@x.com", "another-password")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("second Register error = %v, want ErrDuplicateEmail", err)
	}
	// 不能创建第二条记录，也不能覆盖第一条
	if len(repo.byEmail) != 1 {
		t.Errorf("identity count = %d, want 1", len(repo.byEmail))
	}
	if repo.byEmail["a@x.com"].ID != firstID {
		t.Error("duplicate registration replaced the original identity")
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"短密码", "a@x.com", "12345", ErrWeakPassword},
		{"空密码", "a@x.com", "", ErrWeakPassword},
		{"最小长度按字符数而非字节数", "a@x.com", "密密", ErrWeakPassword},
		{"五个多字节字符仍然太短", "a@x.com", strings.Repeat("密", 5), ErrWeakPassword},
		{"超长密码", "a@x.com", strings.Repeat("x", 73), ErrPasswordTooLong},
		{"上限按字节数计算", "a@x.com", strings.Repeat("密", 25), ErrPasswordTooLong},
		{"非法邮箱", "not-an-email", "secret1", ErrInvalidEmail},
		{"空邮箱", "", "secret1", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestUserService()
			_, err := svc.Register(tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
			// 校验失败不允许触达存储
			if len(repo.byEmail) != 0 {
				t.Error("validation failure still created an identity")
			}
		})
	}
}

func TestUserService_RegisterMultibytePasswordAccepted(t *testing.T) {
	svc, _, _ := newTestUserService()

	// 6 个字符、18 字节：满足最小字符数，也在 bcrypt 字节上限内
	if _, err := svc.Register("a@x.com", strings.Repeat("密", 6)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestUserService_LoginScenario(t *testing.T) {
	svc, _, jwtManager := newTestUserService()

	// register "a@x.com"/"secret1" → token
	if _, err := svc.Register("a@x.com", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// login 同一凭证 → 一个可验证的 token
	tokenString, err := svc.Login("a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if subject, err := jwtManager.Verify(tokenString); err != nil || subject != "a@x.com" {
		t.Errorf("login token subject = %q, err = %v", subject, err)
	}

	// 错误密码 → InvalidCredentials
	if _, err := svc.Login("a@x.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with wrong password error = %v, want ErrInvalidCredentials", err)
	}

	// 未注册邮箱与错误密码不可区分
	if _, err := svc.Login("b@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserService_Authenticate(t *testing.T) {
	svc, repo, _ := newTestUserService()

	tokenString, err := svc.Register("a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.Authenticate(tokenString)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Errorf("authenticated email = %q, want %q", user.Email, "a@x.com")
	}

	// 身份被删除后，签名仍然有效的 token 也必须被拒绝
	delete(repo.byEmail, "a@x.com")
	if _, err := svc.Authenticate(tokenString); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate for deleted identity error = %v, want ErrUnauthorized", err)
	}

	// 垃圾 token
	if _, err := svc.Authenticate("garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate with garbage error = %v, want ErrUnauthorized", err)
	}

	// 已过期的 token
	expired := token.NewJWTManager("test-secret", 0)
	expiredToken, _ := expired.Generate("a@x.com")
	if _, err := svc.Authenticate(expiredToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate with expired token error = %v, want ErrUnauthorized", err)
	}
}
