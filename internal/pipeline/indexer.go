// Package pipeline 定义了对话搜索索引的后台同步流程。
package pipeline

import (
	"context"
	"fmt"

	"pensieve-go/internal/config"
	"pensieve-go/pkg/es"
	"pensieve-go/pkg/kafka"
	"pensieve-go/pkg/log"
	"pensieve-go/pkg/tasks"
)

// Indexer 消费 Kafka 上的索引任务并同步到 Elasticsearch。
// 它实现了 kafka.TaskProcessor 接口。
type Indexer struct {
	esCfg config.ElasticsearchConfig
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(esCfg config.ElasticsearchConfig) *Indexer {
	return &Indexer{esCfg: esCfg}
}

// Process 处理单个索引任务。
// 索引是尽力而为的旁路同步，失败由调用方记录，搜索读路径有 SQL 兜底。
func (p *Indexer) Process(ctx context.Context, task tasks.ConversationIndexTask) error {
	switch task.Action {
	case tasks.ActionIndex:
		doc := es.ConversationDoc{
			ConversationID: task.ConversationID,
			UserID:         task.UserID,
			Content:        task.Content,
			UpdatedAt:      task.UpdatedAt,
		}
		if err := es.IndexConversation(ctx, p.esCfg.IndexName, doc); err != nil {
			return fmt.Errorf("索引对话失败: %w", err)
		}
		log.Infof("[Indexer] 对话已索引: %s", task.ConversationID)
		return nil

	case tasks.ActionDelete:
		if err := es.DeleteConversation(ctx, p.esCfg.IndexName, task.ConversationID); err != nil {
			return fmt.Errorf("删除对话索引失败: %w", err)
		}
		log.Infof("[Indexer] 对话索引已删除: %s", task.ConversationID)
		return nil

	default:
		return fmt.Errorf("未知的索引任务动作: %q", task.Action)
	}
}

// SearchAdapter 将 pkg/es 的查询函数适配为 service.SearchIndex。
type SearchAdapter struct {
	esCfg config.ElasticsearchConfig
}

// NewSearchAdapter 创建一个新的 SearchAdapter 实例。
func NewSearchAdapter(esCfg config.ElasticsearchConfig) *SearchAdapter {
	return &SearchAdapter{esCfg: esCfg}
}

// Search 返回指定用户范围内全文命中的对话 ID。
func (a *SearchAdapter) Search(ctx context.Context, userID, query string, limit int) ([]string, error) {
	return es.SearchConversations(ctx, a.esCfg.IndexName, userID, query, limit)
}

// ProducerAdapter 将 pkg/kafka 的生产函数适配为 service.IndexProducer。
type ProducerAdapter struct{}

// Produce 投递一个索引任务。
func (ProducerAdapter) Produce(task tasks.ConversationIndexTask) error {
	return kafka.ProduceIndexTask(task)
}
