// Package token 提供了用于签发和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 验证失败的哨兵错误，供上层区分“无效”与“过期”两种情况。
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTManager 负责管理 JWT 的签发和验证。
// 密钥必须在服务重启前后保持一致，否则旧 token 将无法通过验证。
type JWTManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的对称密钥
	tokenDur  time.Duration // tokenDur 定义了 token 的有效期
}

// Claims 定义了存储在 JWT 中的数据。
// Subject（注册邮箱）复用 jwt.RegisteredClaims 的标准 sub 声明。
type Claims struct {
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// secret: 用于签名的密钥字符串。
// expireHours: token 的过期时间（小时）。
func NewJWTManager(secret string, expireHours int) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Hour * time.Duration(expireHours),
	}
}

// Generate 为给定的主体（邮箱）签发一个新的 token。
// 过期时间为签发时刻加上固定有效期。
func (m *JWTManager) Generate(subject string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	// 使用 HS256 签名方法创建并签名 token
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secretKey)
}

// Verify 验证给定的 token 字符串并返回其主体。
// 签名不匹配或格式错误返回 ErrInvalidToken，已过期返回 ErrTokenExpired。
func (m *JWTManager) Verify(tokenString string) (string, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 类签名方法，拒绝 alg 混淆
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
