package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/cache"
	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/fyerfyer/doc-audit-system/internal/repository"
	"github.com/fyerfyer/doc-audit-system/pkg/storage"
	"github.com/fyerfyer/doc-audit-system/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DocumentService 文档审核服务
// 负责协调文档上传、流水线处理和结果持久化
type DocumentService struct {
	storage       storage.Storage               // 文件存储服务
	processor     *DocumentProcessor            // 文档处理流水线
	estimator     *ProgressEstimator            // 进度估算器
	repo          repository.DocumentRepository // 文档元数据存储
	statusManager *DocumentStatusManager        // 文档状态管理器
	progressCache cache.Cache                   // 共享进度存储
	progressTTL   time.Duration                 // 进度缓存生存时间
	taskQueue     taskqueue.Queue               // 任务队列
	asyncEnabled  bool                          // 是否启用异步处理
	timeout       time.Duration                 // 处理超时时间
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档审核服务
func NewDocumentService(
	storage storage.Storage,
	processor *DocumentProcessor,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      storage,
		processor:    processor,
		estimator:    NewProgressEstimator(),
		progressTTL:  30 * time.Minute, // 默认进度缓存生存时间
		timeout:      time.Minute * 5,  // 默认超时时间
		logger:       logrus.New(),     // 默认日志记录器
		asyncEnabled: false,            // 默认不启用异步处理
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository 设置文档仓储
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithProgressCache 设置共享进度存储
// 后台任务内发出的进度事件经由缓存对状态查询可见
func WithProgressCache(c cache.Cache) DocumentOption {
	return func(s *DocumentService) {
		s.progressCache = c
	}
}

// WithProgressTTL 设置进度缓存生存时间
func WithProgressTTL(ttl time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if ttl > 0 {
			s.progressTTL = ttl
		}
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// Init 初始化文档服务
// 确保必要的依赖都已设置
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	if s.processor == nil {
		s.processor = NewDocumentProcessor(WithProcessorLogger(s.logger))
	}

	return nil
}

// UploadDocument 上传文档并触发处理
// 文件存入Blob存储，创建元数据记录，然后异步或同步执行处理流水线
func (s *DocumentService) UploadDocument(ctx context.Context, content []byte, filename string, tags string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}

	docID := uuid.New().String()
	filePath := fmt.Sprintf("%s/%s", docID, filepath.Base(filename))

	s.logger.WithFields(logrus.Fields{
		"doc_id":    docID,
		"filename":  filename,
		"file_size": len(content),
	}).Info("Uploading document")

	// 存入Blob存储
	info, err := s.storage.Upload(bytes.NewReader(content), filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to storage: %w", err)
	}

	// 创建文档记录
	doc := &models.Document{
		ID:       docID,
		FileName: filepath.Base(filename),
		FileType: fileTypeFromName(filename),
		FilePath: info.Path,
		FileSize: int64(len(content)),
		Tags:     tags,
	}

	if err := s.statusManager.MarkAsUploaded(ctx, doc); err != nil {
		// 记录创建失败时清理已上传的文件
		_ = s.storage.Delete(info.Path)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	// 触发处理流水线
	if err := s.ProcessDocument(ctx, docID); err != nil {
		return doc, fmt.Errorf("document uploaded but processing failed to start: %w", err)
	}

	return doc, nil
}

// ProcessDocument 触发文档处理
// 启用异步处理时将任务加入队列立即返回，否则在后台goroutine中同步处理
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	if docID == "" {
		return errors.New("document ID cannot be empty")
	}

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if s.asyncEnabled && s.taskQueue != nil {
		return s.enqueueProcessing(ctx, doc)
	}

	// 队列未配置时退化为fire-and-forget goroutine，
	// 上传请求不等待流水线完成
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.ExecuteProcessing(bgCtx, doc.ID); err != nil {
			s.logger.WithError(err).WithField("doc_id", doc.ID).Error("Background document processing failed")
		}
	}()

	return nil
}

// enqueueProcessing 将处理任务加入队列
func (s *DocumentService) enqueueProcessing(ctx context.Context, doc *models.Document) error {
	s.logger.WithFields(logrus.Fields{
		"doc_id":    doc.ID,
		"file_path": doc.FilePath,
	}).Info("Enqueuing document for async processing")

	payload := taskqueue.ProcessDocumentPayload{
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
		Metadata: map[string]string{
			"source": "api",
		},
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskProcessDocument, doc.ID, payload)
	if err != nil {
		s.failDocument(ctx, doc.ID, document.ErrCodeTemporaryFailure,
			fmt.Sprintf("failed to enqueue processing task: %v", err), true)
		return fmt.Errorf("failed to enqueue processing task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":  doc.ID,
		"task_id": taskID,
	}).Info("Document processing task created successfully")

	return nil
}

// ExecuteProcessing 执行文档处理流水线
// 从Blob存储下载文件，运行流水线并持久化结果；
// 由后台goroutine或队列工作者调用
func (s *DocumentService) ExecuteProcessing(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to mark document as processing")
		// 继续处理，不中断
	}

	// 从Blob存储下载文件
	content, err := s.downloadDocument(doc.FilePath)
	if err != nil {
		// 存储故障是基础设施问题，可以重试
		s.failDocument(ctx, docID, document.ErrCodeTemporaryFailure,
			fmt.Sprintf("failed to download file from storage: %v", err), true)
		return fmt.Errorf("failed to download file from storage: %w", err)
	}

	// 运行流水线，进度事件写入共享进度存储
	result := s.processor.ProcessDocumentWithProgress(ctx, content, doc.FileName, s.progressCallback(docID))

	return s.persistResult(ctx, doc, result)
}

// progressCallback 构造流水线进度回调
// 事件附加文档ID后发布到进度接收器，并同步文档记录上的阶段
func (s *DocumentService) progressCallback(docID string) ProgressCallback {
	sink := NewMultiSink(
		NewLogSink(s.logger),
		NewCacheSink(s.progressCache, s.progressTTL),
	)

	return func(progress ProcessingProgress) {
		progress.DocumentID = docID
		sink.Publish(progress)

		// 阶段边界同步到文档记录，供没有缓存时的查询兜底
		if progress.Progress == 0 || progress.Stage == models.StageCompleted || progress.Stage == models.StageFailed {
			if err := s.repo.UpdateStage(docID, progress.Stage, overallProgress(progress.Stage, progress.Progress)); err != nil {
				s.logger.WithError(err).WithField("doc_id", docID).Debug("Failed to sync document stage")
			}
		}
	}
}

// overallProgress 将阶段内百分比折算为整体进度
// 各阶段在整体进度中的权重是固定的
func overallProgress(stage models.ProcessStage, stagePercent int) int {
	type span struct{ base, width int }
	spans := map[models.ProcessStage]span{
		models.StageUploading:  {0, 10},
		models.StageExtracting: {10, 40},
		models.StageChunking:   {50, 30},
		models.StageAnalyzing:  {80, 15},
		models.StageCompleted:  {100, 0},
		models.StageFailed:     {100, 0},
	}

	sp, ok := spans[stage]
	if !ok {
		return 0
	}
	return sp.base + sp.width*stagePercent/100
}

// persistResult 持久化流水线处理结果
func (s *DocumentService) persistResult(ctx context.Context, doc *models.Document, result *ProcessingResult) error {
	// 内容哈希无论成败都写回，供调用方去重
	doc.ContentHash = result.ContentHash

	if !result.Success {
		perr := result.Error
		if perr == nil {
			perr = document.NewProcessingError(document.ErrCodeProcessingFailed, "document processing failed")
		}

		if err := s.repo.Update(doc); err != nil {
			s.logger.WithError(err).WithField("doc_id", doc.ID).Warn("Failed to save content hash")
		}
		s.failDocument(ctx, doc.ID, perr.Code, perr.Message, perr.Retryable)
		return fmt.Errorf("document processing failed: %s", perr.Error())
	}

	// 保存分块
	chunks := make([]*models.DocumentChunk, len(result.Chunks))
	for i, c := range result.Chunks {
		metadata, err := chunkMetadataJSON(c.Metadata)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to encode chunk metadata")
		}
		chunks[i] = &models.DocumentChunk{
			DocumentID:    doc.ID,
			ChunkIndex:    c.Index,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			StartPosition: c.StartPosition,
			EndPosition:   c.EndPosition,
			SemanticType:  string(c.SemanticType),
			Metadata:      metadata,
		}
	}

	if err := s.repo.SaveChunks(doc.ID, chunks); err != nil {
		s.failDocument(ctx, doc.ID, document.ErrCodeTemporaryFailure,
			fmt.Sprintf("failed to save chunks: %v", err), true)
		return fmt.Errorf("failed to save chunks: %w", err)
	}

	// 写回提取的文档元数据
	if metadata, err := documentMetadataJSON(result.Metadata); err == nil {
		doc.Metadata = metadata
	}
	if err := s.repo.Update(doc); err != nil {
		s.logger.WithError(err).WithField("doc_id", doc.ID).Warn("Failed to update document metadata")
	}

	if err := s.statusManager.MarkAsCompleted(ctx, doc.ID, len(result.Chunks)); err != nil {
		// 分块已入库，状态更新失败不算处理失败
		s.logger.WithError(err).WithField("doc_id", doc.ID).Error("Failed to mark document as completed")
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":             doc.ID,
		"chunk_count":        len(result.Chunks),
		"processing_time_ms": result.ProcessingTimeMs,
	}).Info("Document processing completed successfully")

	return nil
}

// downloadDocument 从Blob存储读取文件内容
func (s *DocumentService) downloadDocument(filePath string) ([]byte, error) {
	reader, err := s.storage.Download(filePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// GetDocumentProgress 获取文档处理进度
// 处理中的文档优先返回流水线写入共享进度存储的实时事件，
// 没有缓存事件时回退到基于耗时的估算
func (s *DocumentService) GetDocumentProgress(ctx context.Context, docID string) (ProcessingProgress, error) {
	if err := s.Init(); err != nil {
		return ProcessingProgress{}, err
	}

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return ProcessingProgress{}, fmt.Errorf("failed to get document: %w", err)
	}

	switch doc.Status {
	case models.DocStatusCompleted:
		return ProcessingProgress{
			DocumentID: docID,
			BatchIndex: -1,
			Stage:      models.StageCompleted,
			Progress:   100,
			Message:    "Document processing completed",
			UpdatedAt:  doc.UpdatedAt,
		}, nil

	case models.DocStatusFailed:
		perr := &document.ProcessingError{
			Code:      doc.ErrorCode,
			Message:   doc.Error,
			Retryable: doc.Retryable,
		}
		if perr.Code == "" {
			perr.Code = document.ErrCodeProcessingFailed
		}
		return ProcessingProgress{
			DocumentID: docID,
			BatchIndex: -1,
			Stage:      models.StageFailed,
			Progress:   100,
			Message:    doc.Error,
			Error:      perr,
			UpdatedAt:  doc.UpdatedAt,
		}, nil

	case models.DocStatusUploaded:
		return ProcessingProgress{
			DocumentID: docID,
			BatchIndex: -1,
			Stage:      models.StageUploading,
			Progress:   0,
			Message:    "Document uploaded, waiting for processing",
			UpdatedAt:  doc.UpdatedAt,
		}, nil
	}

	// 处理中：优先使用共享进度存储里的实时事件
	if progress, found := LoadCachedProgress(s.progressCache, docID); found {
		progress.Progress = overallProgress(progress.Stage, progress.Progress)
		return progress, nil
	}

	// 回退到耗时估算
	progress := s.estimator.Estimate(doc.FileSize, document.FileType(doc.FileType), doc.UploadedAt)
	progress.DocumentID = docID
	return progress, nil
}

// GetDocumentChunks 获取文档的分块结果
func (s *DocumentService) GetDocumentChunks(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	// 确认文档存在
	if _, err := s.repo.GetByID(docID); err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return s.repo.GetChunks(docID)
}

// CountDocumentChunks 统计文档分块数量
func (s *DocumentService) CountDocumentChunks(ctx context.Context, docID string) (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	return s.repo.CountChunks(docID)
}

// FindDuplicates 根据内容哈希查找重复文档
// 核心流水线只提供哈希，是否去重由调用方决定
func (s *DocumentService) FindDuplicates(ctx context.Context, docID string) ([]*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if doc.ContentHash == "" {
		return nil, nil
	}

	candidates, err := s.repo.GetByContentHash(doc.ContentHash)
	if err != nil {
		return nil, err
	}

	duplicates := make([]*models.Document, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != docID {
			duplicates = append(duplicates, c)
		}
	}
	return duplicates, nil
}

// DeleteDocument 删除文档及其相关数据
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("doc_id", docID).Info("Deleting document")

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	// 1. 从存储中删除文件
	if err := s.storage.Delete(doc.FilePath); err != nil {
		// 文件可能已被删除，记录错误但不中断流程
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	// 2. 清理进度缓存
	if s.progressCache != nil {
		_ = s.progressCache.Delete(cache.ProgressKey(docID))
	}

	// 3. 删除文档记录和分块（同一事务，含关联任务清理）
	if err := s.statusManager.DeleteDocument(ctx, docID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document record")
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	s.logger.WithField("doc_id", docID).Info("Document deleted successfully")
	return nil
}

// GetDocumentInfo 获取文档信息
func (s *DocumentService) GetDocumentInfo(ctx context.Context, docID string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	return s.statusManager.GetDocument(ctx, docID)
}

// GetDocumentStatus 获取文档处理状态
func (s *DocumentService) GetDocumentStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	return s.statusManager.GetStatus(ctx, docID)
}

// ListDocuments 获取文档列表
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}

	return s.statusManager.ListDocuments(ctx, offset, limit, filters)
}

// UpdateDocumentTags 更新文档标签
func (s *DocumentService) UpdateDocumentTags(ctx context.Context, docID string, tags string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc.Tags = tags
	return s.repo.Update(doc)
}

// WaitForDocumentProcessing 等待文档处理完成
// 主要供测试和批量导入工具使用
func (s *DocumentService) WaitForDocumentProcessing(ctx context.Context, docID string, timeout time.Duration) error {
	if err := s.Init(); err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := s.statusManager.GetStatus(ctx, docID)
		if err != nil {
			return err
		}

		switch status {
		case models.DocStatusCompleted:
			return nil
		case models.DocStatusFailed:
			doc, err := s.statusManager.GetDocument(ctx, docID)
			if err != nil {
				return fmt.Errorf("document processing failed")
			}
			return fmt.Errorf("document processing failed: %s", doc.Error)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for document processing: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// failDocument 将文档标记为失败状态
func (s *DocumentService) failDocument(ctx context.Context, docID string, errorCode string, errorMsg string, retryable bool) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark document as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, docID, errorCode, errorMsg, retryable); err != nil {
		s.logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"error":  err,
		}).Error("Failed to mark document as failed")
	}
}

// GetStatusManager 返回文档状态管理器实例
func (s *DocumentService) GetStatusManager() *DocumentStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *DocumentService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}

// fileTypeFromName 根据文件名扩展名获取文件类型字符串
func fileTypeFromName(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return string(document.FileTypeUnknown)
	}
	return ext
}

// chunkMetadataJSON 将分块元数据编码为JSON列
func chunkMetadataJSON(metadata document.ChunkMetadata) (datatypes.JSON, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// documentMetadataJSON 将文档元数据编码为JSON列
func documentMetadataJSON(metadata document.DocumentMetadata) (datatypes.JSON, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
