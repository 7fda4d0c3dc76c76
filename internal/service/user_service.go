// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"net/mail"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pensieve-go/internal/model"
	"pensieve-go/internal/repository"
	"pensieve-go/pkg/hash"
	"pensieve-go/pkg/log"
	"pensieve-go/pkg/token"
)

// UserService 接口定义了身份注册、登录与鉴权操作。
type UserService interface {
	Register(email, password string) (tokenString string, err error)
	Login(email, password string) (tokenString string, err error)
	Authenticate(tokenString string) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理注册的业务逻辑。
// 输入校验在任何存储访问之前完成；成功后返回为新身份签发的 token。
func (s *userService) Register(email, password string) (string, error) {
	// 1. 边界校验：邮箱格式与密码长度
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	// 最小长度按字符数计，bcrypt 上限按编码后的字节数计
	if utf8.RuneCountInString(password) < 6 {
		return "", ErrWeakPassword
	}
	if len(password) > hash.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	// 2. 检查邮箱是否已注册
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return "", ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// 3. 只存哈希，绝不存明文
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return "", err
	}

	newUser := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		log.Errorf("[UserService] 创建身份记录失败, email: %s, error: %v", email, err)
		return "", err
	}

	// 4. 为新身份签发 token
	return s.jwtManager.Generate(email)
}

// Login 处理登录的业务逻辑。
// 邮箱未注册与密码不匹配返回同一个错误，不泄露账号是否存在。
func (s *userService) Login(email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !hash.CheckPasswordHash(password, user.HashedPassword) {
		return "", ErrInvalidCredentials
	}

	return s.jwtManager.Generate(email)
}

// Authenticate 将 bearer token 解析为身份。
// 验证失败或主体已不存在都返回 ErrUnauthorized。
// 所有受保护操作在触达对话数据之前都必须经过这一检查。
func (s *userService) Authenticate(tokenString string) (*model.User, error) {
	subject, err := s.jwtManager.Verify(tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.FindByEmail(subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}
