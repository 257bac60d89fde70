package repository

import "github.com/fyerfyer/doc-audit-system/internal/models"

// DocumentRepository 文档仓储接口
// 负责文档元数据和分块结果的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// GetByContentHash 根据内容哈希查找文档，供调用方去重
	GetByContentHash(hash string) ([]*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档
	Delete(id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateStage 更新文档当前处理阶段和进度
	UpdateStage(id string, stage models.ProcessStage, progress int) error

	// MarkFailed 标记文档处理失败，记录错误码和是否可重试
	MarkFailed(id string, errorCode string, errorMsg string, retryable bool) error

	// SaveChunks 批量保存文档分块，覆盖已有分块
	SaveChunks(docID string, chunks []*models.DocumentChunk) error

	// GetChunks 获取文档的所有分块，按索引排序
	GetChunks(docID string) ([]*models.DocumentChunk, error)

	// CountChunks 统计文档的分块数量
	CountChunks(docID string) (int, error)

	// DeleteChunks 删除文档的所有分块
	DeleteChunks(docID string) error
}
