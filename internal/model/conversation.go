// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 消息角色的固定取值集合。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole 报告给定的角色是否属于固定集合。
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Message 代表对话中的单条消息，只存在于其所属的 Conversation 内。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageList 是消息的有序序列，以 JSON 列的形式持久化。
type MessageList []Message

// Value 实现 driver.Valuer，序列化为 JSON 写入数据库。
func (m MessageList) Value() (driver.Value, error) {
	if m == nil {
		m = MessageList{}
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner，从数据库读取 JSON 列。
func (m *MessageList) Scan(value interface{}) error {
	if value == nil {
		*m = MessageList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for MessageList")
	}
}

// Metadata 是对话的自由格式元数据映射，以 JSON 列的形式持久化。
type Metadata map[string]interface{}

// Value 实现 driver.Valuer。
func (md Metadata) Value() (driver.Value, error) {
	if md == nil {
		md = Metadata{}
	}
	return json.Marshal(md)
}

// Scan 实现 sql.Scanner。
func (md *Metadata) Scan(value interface{}) error {
	if value == nil {
		*md = Metadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, md)
	case string:
		return json.Unmarshal([]byte(v), md)
	default:
		return errors.New("unsupported type for Metadata")
	}
}

// Conversation 对应于数据库中的 'conversations' 表。
// 所有读写都必须同时按 (id, user_id) 过滤，非属主不可见。
type Conversation struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string      `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Messages  MessageList `gorm:"type:json" json:"messages"`
	Metadata  Metadata    `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationSummary 是列表与搜索接口返回的摘要视图，不携带消息正文。
type ConversationSummary struct {
	ID           string    `json:"id"`
	Metadata     Metadata  `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// SearchResult 是搜索接口的单条结果，附带第一条命中的消息。
// 当命中来自索引而逐条扫描未找到包含关系时，MatchedMessage 为空。
type SearchResult struct {
	ConversationSummary
	MatchedMessage *Message `json:"matched_message,omitempty"`
}
