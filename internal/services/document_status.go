package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/fyerfyer/doc-audit-system/internal/repository"
	"github.com/sirupsen/logrus"
)

// DocumentStatusManager 文档状态管理器
// 负责管理文档处理的生命周期状态和阶段
type DocumentStatusManager struct {
	repo   repository.DocumentRepository // 文档仓储接口
	logger *logrus.Logger                // 日志记录器
	mu     sync.Mutex                    // 互斥锁，保证状态转换的原子性
}

// NewDocumentStatusManager 创建文档状态管理器
func NewDocumentStatusManager(repo repository.DocumentRepository, logger *logrus.Logger) *DocumentStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &DocumentStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 将文档标记为已上传状态
func (m *DocumentStatusManager) MarkAsUploaded(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
	}).Info("Marking document as uploaded")

	doc.Status = models.DocStatusUploaded
	doc.CurrentStage = models.StageUploading
	doc.Progress = 0
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()

	return m.repo.Create(doc)
}

// MarkAsProcessing 将文档标记为处理中状态
func (m *DocumentStatusManager) MarkAsProcessing(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	// 允许失败后重试，所以failed也可以回到processing
	if doc.Status != models.DocStatusUploaded && doc.Status != models.DocStatusFailed {
		return fmt.Errorf("invalid state transition: document %s is in %s state, expected %s or %s",
			docID, doc.Status, models.DocStatusUploaded, models.DocStatusFailed)
	}

	m.logger.WithField("doc_id", docID).Info("Marking document as processing")

	return m.repo.UpdateStatus(docID, models.DocStatusProcessing, "")
}

// UpdateStage 更新文档当前处理阶段和进度
func (m *DocumentStatusManager) UpdateStage(ctx context.Context, docID string, stage models.ProcessStage, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	// 只有处理中的文档才能更新阶段
	if doc.Status != models.DocStatusProcessing {
		return fmt.Errorf("cannot update stage: document %s is not in processing state", docID)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"stage":    stage,
		"progress": progress,
	}).Debug("Updating document stage")

	return m.repo.UpdateStage(docID, stage, progress)
}

// MarkAsCompleted 将文档标记为处理完成状态
func (m *DocumentStatusManager) MarkAsCompleted(ctx context.Context, docID string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if doc.Status != models.DocStatusProcessing && doc.Status != models.DocStatusUploaded {
		return fmt.Errorf("invalid state transition: document %s is in %s state, expected %s or %s",
			docID, doc.Status, models.DocStatusProcessing, models.DocStatusUploaded)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"chunk_count": chunkCount,
	}).Info("Marking document as completed")

	if err := m.repo.UpdateStatus(docID, models.DocStatusCompleted, ""); err != nil {
		return err
	}

	doc.Status = models.DocStatusCompleted
	doc.CurrentStage = models.StageCompleted
	doc.ChunkCount = chunkCount
	doc.Progress = 100
	doc.Error = ""
	doc.ErrorCode = ""
	doc.Retryable = false
	return m.repo.Update(doc)
}

// MarkAsFailed 将文档标记为处理失败状态
// errorCode和retryable来自流水线的错误分类
func (m *DocumentStatusManager) MarkAsFailed(ctx context.Context, docID string, errorCode string, errorMsg string, retryable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetByID(docID); err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":     docID,
		"error_code": errorCode,
		"retryable":  retryable,
		"error":      errorMsg,
	}).Error("Marking document as failed")

	return m.repo.MarkFailed(docID, errorCode, errorMsg, retryable)
}

// GetStatus 获取文档当前状态
func (m *DocumentStatusManager) GetStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return "", fmt.Errorf("failed to get document status: %w", err)
	}
	return doc.Status, nil
}

// GetDocument 获取完整的文档对象
func (m *DocumentStatusManager) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	return m.repo.GetByID(docID)
}

// ListDocuments 获取文档列表
func (m *DocumentStatusManager) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteDocument 删除文档状态记录
func (m *DocumentStatusManager) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("doc_id", docID).Info("Deleting document status record")
	return m.repo.Delete(docID)
}

// ValidateStateTransition 验证状态转换的有效性
func (m *DocumentStatusManager) ValidateStateTransition(from, to models.DocumentStatus) error {
	// 定义有效的状态转换
	validTransitions := map[models.DocumentStatus][]models.DocumentStatus{
		models.DocStatusUploaded: {
			models.DocStatusProcessing,
			models.DocStatusCompleted, // 小文件可能直接完成
			models.DocStatusFailed,    // 上传后可能立即失败
		},
		models.DocStatusProcessing: {
			models.DocStatusCompleted,
			models.DocStatusFailed,
		},
		// 终态
		models.DocStatusCompleted: {},
		models.DocStatusFailed:    {models.DocStatusProcessing}, // 允许重试
	}

	allowed := false
	for _, validTo := range validTransitions[from] {
		if validTo == to {
			allowed = true
			break
		}
	}

	if !allowed {
		return errors.New("invalid state transition")
	}

	return nil
}
