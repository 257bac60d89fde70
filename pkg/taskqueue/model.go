package taskqueue

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskProcessDocument 文档处理流水线任务（验证、提取、分块、入库）
	TaskProcessDocument TaskType = "document:process"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTimeout 等待任务超时
	ErrTaskTimeout = errors.New("timed out waiting for task")
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// ProcessDocumentPayload 文档处理任务载荷
type ProcessDocumentPayload struct {
	DocumentID string            `json:"document_id"` // 文档ID
	FilePath   string            `json:"file_path"`   // Blob存储中的路径
	FileName   string            `json:"file_name"`   // 文件名
	FileType   string            `json:"file_type"`   // 文件类型
	Metadata   map[string]string `json:"metadata"`    // 元数据
}

// ProcessDocumentResult 文档处理任务结果
type ProcessDocumentResult struct {
	DocumentID       string `json:"document_id"`        // 文档ID
	ChunkCount       int    `json:"chunk_count"`        // 分块数量
	ContentHash      string `json:"content_hash"`       // 内容哈希
	ProcessingTimeMs int64  `json:"processing_time_ms"` // 处理耗时（毫秒）
	ErrorCode        string `json:"error_code"`         // 错误码（如果失败）
	Error            string `json:"error"`              // 错误信息（如果失败）
	Retryable        bool   `json:"retryable"`          // 失败是否可重试
}

// MarshalPayload 将任意载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
