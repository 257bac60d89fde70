package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档处理状态类型
type DocumentStatus string

const (
	// DocStatusUploaded 文档已上传，等待处理
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 文档处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage 文档处理阶段
// 与流水线的进度事件共用同一组阶段标签
type ProcessStage string

const (
	// StageUploading 上传/验证阶段
	StageUploading ProcessStage = "uploading"
	// StageExtracting 文本提取阶段
	StageExtracting ProcessStage = "extracting"
	// StageChunking 语义分块阶段
	StageChunking ProcessStage = "chunking"
	// StageAnalyzing 分析阶段（由外部AI分析服务执行，流水线只上报边界）
	StageAnalyzing ProcessStage = "analyzing"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
	// StageFailed 处理失败
	StageFailed ProcessStage = "failed"
)

// Document 文档数据模型
// 存储文档元数据，文档ID由外部分配（上传时生成）
type Document struct {
	ID           string         `gorm:"primaryKey"`         // 文档ID，主键
	FileName     string         `gorm:"not null"`           // 文件名
	FileType     string         `gorm:"not null"`           // 文件类型
	FilePath     string         `gorm:"not null"`           // Blob存储中的路径
	FileSize     int64          `gorm:"not null"`           // 文件大小（字节）
	ContentHash  string         `gorm:"size:64;index"`      // 内容SHA-256哈希，供调用方去重
	Status       DocumentStatus `gorm:"not null;index"`     // 处理状态
	CurrentStage ProcessStage   `gorm:"size:20"`            // 当前处理阶段
	UploadedAt   time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt  *time.Time     `gorm:"index"`              // 处理完成时间
	UpdatedAt    time.Time      `gorm:"not null;index"`     // 更新时间
	Progress     int            `gorm:"not null;default:0"` // 处理进度（0-100）
	Error        string         `gorm:"type:text"`          // 错误信息
	ErrorCode    string         `gorm:"size:50"`            // 错误码
	Retryable    bool           `gorm:"default:false"`      // 失败是否可重试
	ChunkCount   int            `gorm:"not null;default:0"` // 分块数量
	Tags         string         `gorm:"type:varchar(255)"`  // 标签，逗号分隔
	Metadata     datatypes.JSON `gorm:"type:json"`          // 提取的文档元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk 文档分块数据模型
// 持久化流水线产出的语义分块
type DocumentChunk struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	DocumentID    string         `gorm:"not null;index"`           // 所属文档ID
	ChunkIndex    int            `gorm:"not null"`                 // 分块索引，按文档内从0连续递增
	Content       string         `gorm:"type:text;not null"`       // 分块文本内容
	TokenCount    int            `gorm:"not null"`                 // 估算的token数量
	StartPosition int            `gorm:"not null"`                 // 在规范化文本中的起始位置
	EndPosition   int            `gorm:"not null"`                 // 在规范化文本中的结束位置
	SemanticType  string         `gorm:"size:20"`                  // 主导语义类型
	Metadata      datatypes.JSON `gorm:"type:json"`                // 分块元数据（单元数量、类型分布）
	CreatedAt     time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt     time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// TableName 明确指定表名
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
