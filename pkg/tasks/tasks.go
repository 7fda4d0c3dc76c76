// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// 索引任务的动作类型。
const (
	ActionIndex  = "index"
	ActionDelete = "delete"
)

// ConversationIndexTask 表示一条对话的搜索索引任务。
// 在对话写入/删除后由服务层产生，由后台消费者同步到 Elasticsearch。
type ConversationIndexTask struct {
	Action         string `json:"action"` // "index" 或 "delete"
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`    // 全部消息正文拼接而成，仅 index 时携带
	UpdatedAt      int64  `json:"updated_at"` // Unix 秒
}
