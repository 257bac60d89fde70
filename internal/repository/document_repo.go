package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/database"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/fyerfyer/doc-audit-system/pkg/taskqueue"
	"gorm.io/gorm"
)

// docRepository 文档仓储实现
type docRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列
	ctx       context.Context // 上下文，可用于事务或超时控制
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithQueue 使用指定的数据库连接和任务队列创建文档仓储实例
func NewDocumentRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetByContentHash 根据内容哈希查找文档
// 哈希相同的文档视为内容重复，由调用方决定如何处理
func (r *docRepository) GetByContentHash(hash string) ([]*models.Document, error) {
	if hash == "" {
		return nil, errors.New("content hash cannot be empty")
	}

	var docs []*models.Document
	err := r.db.Where("content_hash = ?", hash).
		Order("uploaded_at ASC").
		Find(&docs).Error
	return docs, err
}

// List 列出文档列表，支持分页和筛选
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.DocumentStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				statusStr := fmt.Sprintf("%v", status)
				if statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		// 文件类型过滤
		if fileType, ok := filters["file_type"].(string); ok && fileType != "" {
			query = query.Where("file_type = ?", fileType)
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	// 获取总数
	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// 应用排序、分页并执行查询
	err = query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error

	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete 删除文档记录及其分块
func (r *docRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 1. 删除文档分块
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}

		// 2. 删除文档记录
		if err := tx.Where("id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}

		// 3. 如果任务队列已初始化，尝试获取并删除相关任务
		if r.taskQueue != nil {
			ctx := r.getContext()
			tasks, err := r.taskQueue.GetTasksByDocument(ctx, id)
			if err == nil && len(tasks) > 0 {
				for _, task := range tasks {
					// 忽略错误，任务可能已经被删除
					_ = r.taskQueue.DeleteTask(ctx, task.ID)
				}
			}
		}

		return nil
	})
}

// UpdateStatus 更新文档状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 状态进入终态时设置处理完成时间
	if status == models.DocStatusCompleted || status == models.DocStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}
	if status == models.DocStatusCompleted {
		updates["current_stage"] = models.StageCompleted
		updates["progress"] = 100
	}

	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateStage 更新文档当前处理阶段和进度
func (r *docRepository) UpdateStage(id string, stage models.ProcessStage, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stage": stage,
			"progress":      progress,
			"updated_at":    time.Now(),
		}).Error
}

// MarkFailed 标记文档处理失败
// 错误码和可重试标志来自流水线的错误分类，供调用方决定是否重试
func (r *docRepository) MarkFailed(id string, errorCode string, errorMsg string, retryable bool) error {
	now := time.Now()
	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.DocStatusFailed,
			"current_stage": models.StageFailed,
			"error_code":    errorCode,
			"error":         errorMsg,
			"retryable":     retryable,
			"processed_at":  &now,
			"updated_at":    now,
		}).Error
}

// SaveChunks 批量保存文档分块
// 先删除旧分块再写入，保证重复处理同一文档时分块索引连续
func (r *docRepository) SaveChunks(docID string, chunks []*models.DocumentChunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}

		if len(chunks) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return err
		}

		// 同步文档记录上的分块计数
		return tx.Model(&models.Document{}).
			Where("id = ?", docID).
			Update("chunk_count", len(chunks)).Error
	})
}

// GetChunks 获取文档的所有分块，按索引升序
func (r *docRepository) GetChunks(docID string) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	err := r.db.Where("document_id = ?", docID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

// CountChunks 统计文档的分块数量
func (r *docRepository) CountChunks(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.DocumentChunk{}).
		Where("document_id = ?", docID).
		Count(&count).Error
	return int(count), err
}

// DeleteChunks 删除文档的所有分块
func (r *docRepository) DeleteChunks(docID string) error {
	return r.db.Where("document_id = ?", docID).
		Delete(&models.DocumentChunk{}).Error
}

// WithContext 创建带有上下文的仓储
func (r *docRepository) WithContext(ctx context.Context) DocumentRepository {
	return &docRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}

// getContext 获取仓储的上下文，如果未设置则使用背景上下文
func (r *docRepository) getContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// GetDocumentTasks 获取文档相关的所有任务
func (r *docRepository) GetDocumentTasks(ctx context.Context, documentID string) ([]*taskqueue.Task, error) {
	if r.taskQueue == nil {
		return nil, errors.New("task queue not initialized")
	}

	return r.taskQueue.GetTasksByDocument(ctx, documentID)
}

// GetTaskByID 根据ID获取任务
func (r *docRepository) GetTaskByID(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	if r.taskQueue == nil {
		return nil, errors.New("task queue not initialized")
	}

	return r.taskQueue.GetTask(ctx, taskID)
}

// CreateTask 创建任务并关联到文档
func (r *docRepository) CreateTask(ctx context.Context, taskType taskqueue.TaskType, documentID string, payload interface{}) (string, error) {
	if r.taskQueue == nil {
		return "", errors.New("task queue not initialized")
	}

	// 检查文档是否存在
	_, err := r.GetByID(documentID)
	if err != nil {
		return "", err
	}

	// 将任务加入队列
	taskID, err := r.taskQueue.Enqueue(ctx, taskType, documentID, payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 更新文档状态为处理中
	if err := r.UpdateStatus(documentID, models.DocStatusProcessing, ""); err != nil {
		// 任务已创建，状态更新失败不回滚
		return taskID, nil
	}

	return taskID, nil
}
