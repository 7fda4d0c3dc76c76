// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应于数据库中的 'users' 表，代表一个注册身份。
type User struct {
	// ID 是注册时生成的 UUID，作为主键。
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Email 是注册邮箱，大小写敏感，创建时由唯一索引保证不重复。
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	// HashedPassword 是 bcrypt 哈希后的密码，永远不在 API 响应中出现。
	HashedPassword string `gorm:"type:varchar(255);not null" json:"-"`
	// CreatedAt 由 GORM 自动管理，记录注册时间。
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
