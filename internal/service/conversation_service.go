// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pensieve-go/internal/model"
	"pensieve-go/internal/repository"
	"pensieve-go/pkg/log"
	"pensieve-go/pkg/tasks"
)

// SearchIndex 抽象了全文索引的查询端，返回命中的对话 ID。
// 为 nil 或查询失败时，搜索退回到存储层的子串匹配。
type SearchIndex interface {
	Search(ctx context.Context, userID, query string, limit int) ([]string, error)
}

// IndexProducer 抽象了索引任务的投递端（Kafka 生产者）。
type IndexProducer interface {
	Produce(task tasks.ConversationIndexTask) error
}

// ConversationService 定义了对话业务逻辑的接口。
// 所有操作都以属主 ID 为隐式范围，非属主访问等同于资源不存在。
type ConversationService interface {
	Create(ctx context.Context, ownerID string, messages []model.Message, metadata model.Metadata) (*model.Conversation, error)
	List(ctx context.Context, ownerID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error)
	ListWithMessages(ctx context.Context, ownerID string, limit, offset int) ([]model.Conversation, error)
	Get(ctx context.Context, ownerID, id string) (*model.Conversation, error)
	Update(ctx context.Context, ownerID, id string, messages []model.Message) error
	Append(ctx context.Context, ownerID, id string, messages []model.Message) (int, error)
	Delete(ctx context.Context, ownerID, id string) error
	Search(ctx context.Context, ownerID, query string, limit int) ([]model.SearchResult, error)
}

type conversationService struct {
	repo     repository.ConversationRepository
	index    SearchIndex   // 可为 nil
	producer IndexProducer // 可为 nil
}

// NewConversationService 创建一个新的 ConversationService。
// index 和 producer 允许为 nil，此时搜索走 SQL 兜底、索引同步被跳过。
func NewConversationService(repo repository.ConversationRepository, index SearchIndex, producer IndexProducer) ConversationService {
	return &conversationService{repo: repo, index: index, producer: producer}
}

// validateMessages 校验消息角色属于固定集合，不检查顺序和数量。
func validateMessages(messages []model.Message) error {
	for _, m := range messages {
		if !model.ValidRole(m.Role) {
			return ErrInvalidRole
		}
	}
	return nil
}

// Create 创建一条新对话，创建与更新时间戳相等。
func (s *conversationService) Create(ctx context.Context, ownerID string, messages []model.Message, metadata model.Metadata) (*model.Conversation, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = model.Metadata{}
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Messages:  model.MessageList(messages),
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.produceIndex(conv)
	return conv, nil
}

// List 返回属主的对话摘要，最多 limit 条，跳过 offset 条。
func (s *conversationService) List(ctx context.Context, ownerID string, limit, offset int, newestFirst bool) ([]model.ConversationSummary, error) {
	return s.repo.FindWithPagination(ctx, ownerID, limit, offset, newestFirst)
}

// ListWithMessages 返回含消息正文的对话列表，按创建时间降序。
func (s *conversationService) ListWithMessages(ctx context.Context, ownerID string, limit, offset int) ([]model.Conversation, error) {
	return s.repo.FindAllWithMessages(ctx, ownerID, limit, offset)
}

// Get 返回完整对话，未命中 (id, 属主) 返回 ErrNotFound。
func (s *conversationService) Get(ctx context.Context, ownerID, id string) (*model.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

// Update 整体替换消息序列。并发替换没有版本保护，最后写者胜出。
func (s *conversationService) Update(ctx context.Context, ownerID, id string, messages []model.Message) error {
	if err := validateMessages(messages); err != nil {
		return err
	}

	err := s.repo.ReplaceMessages(ctx, ownerID, id, model.MessageList(messages))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.produceIndexByID(ctx, ownerID, id)
	return nil
}

// Append 将新消息拼接到已有序列末尾，返回追加的条数。
func (s *conversationService) Append(ctx context.Context, ownerID, id string, messages []model.Message) (int, error) {
	if err := validateMessages(messages); err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		// 空追加也要求对话存在
		if _, err := s.Get(ctx, ownerID, id); err != nil {
			return 0, err
		}
		return 0, nil
	}

	err := s.repo.AppendMessages(ctx, ownerID, id, model.MessageList(messages))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	s.produceIndexByID(ctx, ownerID, id)
	return len(messages), nil
}

// Delete 永久删除对话，随后移除其索引文档。
func (s *conversationService) Delete(ctx context.Context, ownerID, id string) error {
	err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if s.producer != nil {
		if perr := s.producer.Produce(tasks.ConversationIndexTask{
			Action:         tasks.ActionDelete,
			ConversationID: id,
			UserID:         ownerID,
		}); perr != nil {
			log.Errorf("[ConversationService] 投递删除索引任务失败, conversation: %s, error: %v", id, perr)
		}
	}
	return nil
}

// Search 在属主范围内检索消息正文。
// 候选集优先来自全文索引，索引不可用时退回存储层的子串匹配；
// 每条结果附带第一条内容包含查询串的消息，逐条扫描保证语义一致。
func (s *conversationService) Search(ctx context.Context, ownerID, query string, limit int) ([]model.SearchResult, error) {
	var convs []model.Conversation
	var err error

	// fromIndex 为 true 时允许保留逐条扫描未确认的候选（分词命中）
	fromIndex := false
	if s.index != nil {
		ids, serr := s.index.Search(ctx, ownerID, query, limit)
		if serr == nil {
			fromIndex = true
			convs, err = s.repo.FindByIDs(ctx, ownerID, ids)
		} else {
			log.Warnf("[ConversationService] 索引查询失败，退回 SQL 匹配: %v", serr)
			convs, err = s.repo.SearchByContent(ctx, ownerID, query, limit)
		}
	} else {
		convs, err = s.repo.SearchByContent(ctx, ownerID, query, limit)
	}
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	results := make([]model.SearchResult, 0, len(convs))
	for _, conv := range convs {
		result := model.SearchResult{
			ConversationSummary: model.ConversationSummary{
				ID:           conv.ID,
				Metadata:     conv.Metadata,
				CreatedAt:    conv.CreatedAt,
				UpdatedAt:    conv.UpdatedAt,
				MessageCount: len(conv.Messages),
			},
		}
		// 提取第一条命中的消息；索引命中但逐条扫描未发现包含关系时置空
		for i := range conv.Messages {
			if strings.Contains(strings.ToLower(conv.Messages[i].Content), lowered) {
				result.MatchedMessage = &conv.Messages[i]
				break
			}
		}
		// SQL 兜底的语义就是正文子串匹配，扫描无法确认的候选直接丢弃
		if result.MatchedMessage == nil && !fromIndex {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// produceIndex 以尽力而为的方式投递整条对话的索引任务，失败只记录日志。
func (s *conversationService) produceIndex(conv *model.Conversation) {
	if s.producer == nil {
		return
	}
	contents := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		contents = append(contents, m.Content)
	}
	task := tasks.ConversationIndexTask{
		Action:         tasks.ActionIndex,
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Content:        strings.Join(contents, "\n"),
		UpdatedAt:      conv.UpdatedAt.Unix(),
	}
	if err := s.producer.Produce(task); err != nil {
		log.Errorf("[ConversationService] 投递索引任务失败, conversation: %s, error: %v", conv.ID, err)
	}
}

// produceIndexByID 重新加载对话后投递索引任务，用于 update/append 之后。
func (s *conversationService) produceIndexByID(ctx context.Context, ownerID, id string) {
	if s.producer == nil {
		return
	}
	conv, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		log.Warnf("[ConversationService] 重新加载对话用于索引失败, conversation: %s, error: %v", id, err)
		return
	}
	s.produceIndex(conv)
}
