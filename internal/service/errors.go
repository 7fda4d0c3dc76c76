// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误的哨兵定义。
// 两个传输面（REST 与 MCP 工具）共用同一套错误，各自映射为状态码或错误文本。
var (
	// ErrInvalidEmail 表示邮箱格式不合法。
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword 表示密码长度不足 6 个字符。
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrPasswordTooLong 表示密码超出 bcrypt 的 72 字节上限。
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrDuplicateEmail 表示邮箱已被注册。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials 表示邮箱未注册或密码不匹配，两种情况不作区分。
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrUnauthorized 表示 token 缺失、无效、过期，或其主体已不存在。
	ErrUnauthorized = errors.New("invalid authentication credentials")
	// ErrNotFound 表示资源不存在，或存在但不属于调用者。
	ErrNotFound = errors.New("conversation not found")
	// ErrInvalidRole 表示消息角色不在固定集合内。
	ErrInvalidRole = errors.New("message role must be one of user, assistant, system")
)
