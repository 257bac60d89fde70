package services

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/cache"
	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/sirupsen/logrus"
)

// ProcessingProgress 处理进度事件
// 瞬态事件，流水线不保留历史，需要持久化的调用方自行保存每个事件
type ProcessingProgress struct {
	DocumentID             string                    `json:"document_id,omitempty"`    // 文档ID（批处理时由调用方附加）
	BatchIndex             int                       `json:"batch_index"`              // 批处理中的序号，非批处理时为-1
	Stage                  models.ProcessStage       `json:"stage"`                    // 当前阶段
	Progress               int                       `json:"progress"`                 // 进度百分比（0-100）
	Message                string                    `json:"message"`                  // 人类可读的进度描述
	EstimatedTimeRemaining int                       `json:"estimated_time_remaining"` // 预估剩余秒数，未知时为-1
	Error                  *document.ProcessingError `json:"error,omitempty"`          // 失败时的错误信息
	UpdatedAt              time.Time                 `json:"updated_at"`               // 事件时间
}

// ProgressSink 进度事件接收器
// 流水线的进度回调与轮询端点之间没有隐式通道，
// 需要打通两者时显式挂一个CacheSink作为共享进度存储
type ProgressSink interface {
	// Publish 发布一条进度事件，实现方不得阻塞流水线
	Publish(progress ProcessingProgress)
}

// LogSink 将进度事件写入日志
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink 创建日志进度接收器
func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogSink{logger: logger}
}

// Publish 记录进度事件
func (s *LogSink) Publish(progress ProcessingProgress) {
	fields := logrus.Fields{
		"document_id": progress.DocumentID,
		"stage":       progress.Stage,
		"progress":    progress.Progress,
	}
	if progress.BatchIndex >= 0 {
		fields["batch_index"] = progress.BatchIndex
	}

	if progress.Error != nil {
		fields["error_code"] = progress.Error.Code
		fields["retryable"] = progress.Error.Retryable
		s.logger.WithFields(fields).Error(progress.Message)
		return
	}
	s.logger.WithFields(fields).Debug(progress.Message)
}

// CacheSink 将每个文档的最新进度事件写入缓存
// 这是流水线实时进度与轮询端点之间的共享进度存储：
// 后台任务里发出的事件经由缓存对状态查询可见
type CacheSink struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCacheSink 创建缓存进度接收器
func NewCacheSink(c cache.Cache, ttl time.Duration) *CacheSink {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CacheSink{cache: c, ttl: ttl}
}

// Publish 将事件序列化后覆盖写入该文档的进度键
func (s *CacheSink) Publish(progress ProcessingProgress) {
	if s.cache == nil || progress.DocumentID == "" {
		return
	}

	data, err := json.Marshal(progress)
	if err != nil {
		return
	}

	// 写入失败不影响流水线，进度查询会回退到估算器
	_ = s.cache.Set(cache.ProgressKey(progress.DocumentID), string(data), s.ttl)
}

// LoadCachedProgress 从缓存读取文档的最新进度事件
// 没有缓存事件时返回false，调用方回退到估算器
func LoadCachedProgress(c cache.Cache, documentID string) (ProcessingProgress, bool) {
	var progress ProcessingProgress
	if c == nil || documentID == "" {
		return progress, false
	}

	data, found, err := c.Get(cache.ProgressKey(documentID))
	if err != nil || !found {
		return progress, false
	}

	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return progress, false
	}
	return progress, true
}

// MultiSink 将进度事件扇出到多个接收器
type MultiSink struct {
	sinks []ProgressSink
}

// NewMultiSink 创建扇出进度接收器，nil接收器会被忽略
func NewMultiSink(sinks ...ProgressSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish 按注册顺序转发事件
func (m *MultiSink) Publish(progress ProcessingProgress) {
	for _, s := range m.sinks {
		s.Publish(progress)
	}
}
