// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pensieve-go/internal/model"
)

// ConversationRepository 定义了对话文档的持久化操作。
// 除 Create 外，所有操作都同时按对话 ID 和属主 ID 过滤。
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, userID, id string) (*model.Conversation, error)
	FindWithPagination(ctx context.Context, userID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error)
	FindAllWithMessages(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error)
	ReplaceMessages(ctx context.Context, userID, id string, messages model.MessageList) error
	AppendMessages(ctx context.Context, userID, id string, messages model.MessageList) error
	Delete(ctx context.Context, userID, id string) error
	FindByIDs(ctx context.Context, userID string, ids []string) ([]model.Conversation, error)
	SearchByContent(ctx context.Context, userID, query string, limit int) ([]model.Conversation, error)
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 在数据库中创建一条新的对话记录。
func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// FindByID 按 (id, user_id) 查找对话，未命中返回 gorm.ErrRecordNotFound。
func (r *conversationRepository) FindByID(ctx context.Context, userID, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindWithPagination 分页检索属主的对话摘要，不加载消息正文。
// newestFirst 为 true 时按创建时间降序，否则保持存储自然顺序。
func (r *conversationRepository) FindWithPagination(ctx context.Context, userID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error) {
	db := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Select("id, metadata, created_at, updated_at, JSON_LENGTH(messages) AS message_count").
		Where("user_id = ?", userID)
	if newestFirst {
		db = db.Order("created_at DESC")
	}

	summaries := make([]model.ConversationSummary, 0, limit)
	err := db.Offset(offset).Limit(limit).Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// FindAllWithMessages 分页检索属主的完整对话（含消息正文），按创建时间降序。
// 仅供前端面板接口使用，常规列表只返回摘要。
func (r *conversationRepository) FindAllWithMessages(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ReplaceMessages 整体替换消息序列并刷新 updated_at。
// 未命中 (id, user_id) 返回 gorm.ErrRecordNotFound。
// 没有版本列，并发替换彼此覆盖，最后写者胜出。
func (r *conversationRepository) ReplaceMessages(ctx context.Context, userID, id string, messages model.MessageList) error {
	tx := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"messages":   messages,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendMessages 将新消息拼接到已有序列末尾并刷新 updated_at。
// 使用单条 UPDATE 在存储侧完成数组拼接，并发 append 互不丢失。
func (r *conversationRepository) AppendMessages(ctx context.Context, userID, id string, messages model.MessageList) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	tx := r.db.WithContext(ctx).Exec(
		"UPDATE conversations SET messages = JSON_MERGE_PRESERVE(messages, CAST(? AS JSON)), updated_at = ? WHERE id = ? AND user_id = ?",
		string(payload), time.Now().UTC(), id, userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 永久删除对话，未命中 (id, user_id) 返回 gorm.ErrRecordNotFound。
func (r *conversationRepository) Delete(ctx context.Context, userID, id string) error {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Conversation{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByIDs 按 ID 集合加载属主的对话，保持传入 ID 的顺序。
func (r *conversationRepository) FindByIDs(ctx context.Context, userID string, ids []string) ([]model.Conversation, error) {
	if len(ids) == 0 {
		return []model.Conversation{}, nil
	}

	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Conversation, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
	}
	ordered := make([]model.Conversation, 0, len(convs))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// SearchByContent 在消息正文上做大小写不敏感的子串匹配，作为索引不可用时的兜底。
// 通过 JSON_TABLE 只展开 $[*].content 的值参与匹配，
// 角色值和 JSON 结构键不在匹配范围内，也不受 JSON 转义影响。
func (r *conversationRepository) SearchByContent(ctx context.Context, userID, query string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	pattern := "%" + escapeLike(query) + "%"
	err := r.db.WithContext(ctx).Raw(
		`SELECT c.* FROM conversations c
		 WHERE c.user_id = ? AND EXISTS (
		   SELECT 1 FROM JSON_TABLE(c.messages, '$[*]'
		     COLUMNS (content TEXT PATH '$.content')) AS msg
		   WHERE LOWER(msg.content) LIKE LOWER(?)
		 )
		 LIMIT ?`,
		userID, pattern, limit,
	).Scan(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// escapeLike 转义 LIKE 模式中的通配符，让查询串按字面量匹配。
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
