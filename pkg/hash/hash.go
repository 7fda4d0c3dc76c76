// Package hash 封装了基于 bcrypt 的密码哈希处理。
package hash

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes 是 bcrypt 可接受的密码最大字节数，超出部分会被算法截断。
const MaxPasswordBytes = 72

// HashPassword 使用默认 cost 对明文密码进行哈希。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash 比较明文密码与哈希值。
// bcrypt 内部使用常量时间比较，不能用字符串相等替代。
func CheckPasswordHash(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
