package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/sirupsen/logrus"
)

// ProcessingResult 一次文档处理的完整结果
// 每次ProcessDocument调用创建一个，返回后不再修改；
// 持久化由调用方负责
type ProcessingResult struct {
	Success          bool                      `json:"success"`                     // 是否处理成功
	ExtractedText    string                    `json:"extracted_text,omitempty"`    // 提取的纯文本
	Chunks           []document.DocumentChunk  `json:"chunks,omitempty"`            // 语义分块
	Metadata         document.DocumentMetadata `json:"metadata,omitempty"`          // 提取的文档元数据
	ContentHash      string                    `json:"content_hash"`                // 内容SHA-256哈希（十六进制），始终计算
	Warnings         []string                  `json:"warnings,omitempty"`          // 验证阶段的警告
	ProcessingTimeMs int64                     `json:"processing_time_ms"`          // 处理耗时（墙钟毫秒）
	Error            *document.ProcessingError `json:"error,omitempty"`             // 失败时的错误信息
}

// BatchItem 批处理输入项
type BatchItem struct {
	Buffer   []byte // 文件内容
	Filename string // 原始文件名
}

// ProgressCallback 进度回调
// 在流水线执行的goroutine内同步调用，回调不得长时间阻塞
type ProgressCallback func(progress ProcessingProgress)

// DocumentProcessor 文档处理流水线编排器
// 串联验证、提取、分块三个阶段，阶段严格有序，
// 一次调用内无内部并行，调用之间不共享可变状态，
// 可以并发发起多个独立调用
type DocumentProcessor struct {
	validator *document.FileValidator
	extractor *document.TextExtractor
	chunker   *document.SemanticChunker
	logger    *logrus.Logger
}

// ProcessorOption 流水线配置选项
type ProcessorOption func(*DocumentProcessor)

// WithProcessorLogger 设置日志记录器
func WithProcessorLogger(logger *logrus.Logger) ProcessorOption {
	return func(p *DocumentProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithValidator 设置文件验证器
func WithValidator(v *document.FileValidator) ProcessorOption {
	return func(p *DocumentProcessor) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithChunker 设置语义分块器
func WithChunker(c *document.SemanticChunker) ProcessorOption {
	return func(p *DocumentProcessor) {
		if c != nil {
			p.chunker = c
		}
	}
}

// NewDocumentProcessor 创建文档处理流水线
func NewDocumentProcessor(opts ...ProcessorOption) *DocumentProcessor {
	p := &DocumentProcessor{
		validator: document.NewFileValidator(document.DefaultValidatorConfig()),
		extractor: document.NewTextExtractor(),
		chunker:   document.NewSemanticChunker(document.DefaultChunkerConfig()),
		logger:    logrus.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessDocument 处理单个文档
// 永不返回error：所有失败都封装在结果的Error字段中，
// 子阶段panic也会被捕获并归类为PROCESSING_FAILED
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, buffer []byte, filename string) *ProcessingResult {
	return p.ProcessDocumentWithProgress(ctx, buffer, filename, nil)
}

// ProcessDocumentWithProgress 处理单个文档并上报进度
// 进度事件按阶段顺序发出，同一阶段内百分比单调不减
func (p *DocumentProcessor) ProcessDocumentWithProgress(ctx context.Context, buffer []byte, filename string, onProgress ProgressCallback) (result *ProcessingResult) {
	startedAt := time.Now()

	// 内容哈希始终计算，验证失败时也要返回，供调用方去重
	hash := sha256.Sum256(buffer)
	contentHash := hex.EncodeToString(hash[:])

	result = &ProcessingResult{ContentHash: contentHash}

	// 子阶段的panic不越过流水线边界
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"filename": filename,
				"panic":    r,
			}).Error("Recovered from panic during document processing")

			perr := document.NewProcessingError(document.ErrCodeProcessingFailed,
				fmt.Sprintf("unexpected failure while processing document: %v", r))
			result.Success = false
			result.Error = perr
			result.ProcessingTimeMs = time.Since(startedAt).Milliseconds()
			p.emit(onProgress, models.StageFailed, 100, perr.Message, perr)
		}
	}()

	p.logger.WithFields(logrus.Fields{
		"filename":  filename,
		"file_size": len(buffer),
	}).Info("Starting document processing")

	// 阶段1：验证
	p.emit(onProgress, models.StageUploading, 0, "Validating document", nil)

	validation := p.validator.Validate(buffer, filename)
	result.Warnings = validation.Warnings
	if !validation.Valid {
		perr := document.NewProcessingError(document.ErrCodeValidationFailed,
			strings.Join(validation.Errors, "; "))
		return p.fail(result, startedAt, onProgress, perr)
	}

	p.emit(onProgress, models.StageUploading, 100, "Validation passed", nil)

	// 阶段2：文本提取
	p.emit(onProgress, models.StageExtracting, 0, "Extracting text", nil)

	extracted, err := p.extractor.Extract(buffer, filename)
	if err != nil {
		return p.fail(result, startedAt, onProgress, document.AsProcessingError(err))
	}
	result.ExtractedText = extracted.Text
	result.Metadata = extracted.Metadata

	p.emit(onProgress, models.StageExtracting, 100,
		fmt.Sprintf("Extracted %d characters", len(extracted.Text)), nil)

	// 阶段3：语义分块
	p.emit(onProgress, models.StageChunking, 0, "Chunking text", nil)

	chunks, err := p.chunker.Chunk(extracted.Text)
	if err != nil {
		return p.fail(result, startedAt, onProgress, document.AsProcessingError(err))
	}
	if len(chunks) == 0 {
		perr := document.NewProcessingError(document.ErrCodeChunkingFailed,
			"chunking produced no chunks")
		return p.fail(result, startedAt, onProgress, perr)
	}
	result.Chunks = chunks

	p.emit(onProgress, models.StageChunking, 100,
		fmt.Sprintf("Produced %d chunks", len(chunks)), nil)

	// 阶段4：分析边界
	// 分析本身由外部AI审核服务执行，这里只上报阶段边界
	p.emit(onProgress, models.StageAnalyzing, 0, "Ready for analysis", nil)

	result.Success = true
	result.ProcessingTimeMs = time.Since(startedAt).Milliseconds()

	p.emit(onProgress, models.StageCompleted, 100, "Document processing completed", nil)

	p.logger.WithFields(logrus.Fields{
		"filename":           filename,
		"chunk_count":        len(chunks),
		"processing_time_ms": result.ProcessingTimeMs,
	}).Info("Document processing completed")

	return result
}

// ProcessBatch 顺序处理一批文档
// 输出与输入顺序一致，单项失败不影响其他项，
// 进度事件通过BatchIndex区分来源
func (p *DocumentProcessor) ProcessBatch(ctx context.Context, items []BatchItem, onProgress ProgressCallback) []*ProcessingResult {
	results := make([]*ProcessingResult, len(items))

	for i, item := range items {
		index := i
		var itemCallback ProgressCallback
		if onProgress != nil {
			itemCallback = func(progress ProcessingProgress) {
				progress.BatchIndex = index
				onProgress(progress)
			}
		}

		results[i] = p.ProcessDocumentWithProgress(ctx, item.Buffer, item.Filename, itemCallback)
	}

	return results
}

// fail 组装失败结果并发出failed事件
func (p *DocumentProcessor) fail(result *ProcessingResult, startedAt time.Time, onProgress ProgressCallback, perr *document.ProcessingError) *ProcessingResult {
	result.Success = false
	result.Error = perr
	result.ProcessingTimeMs = time.Since(startedAt).Milliseconds()

	p.logger.WithFields(logrus.Fields{
		"error_code": perr.Code,
		"retryable":  perr.Retryable,
	}).Warn(perr.Message)

	p.emit(onProgress, models.StageFailed, 100, perr.Message, perr)
	return result
}

// emit 发出进度事件
func (p *DocumentProcessor) emit(onProgress ProgressCallback, stage models.ProcessStage, percent int, message string, perr *document.ProcessingError) {
	if onProgress == nil {
		return
	}

	onProgress(ProcessingProgress{
		BatchIndex:             -1,
		Stage:                  stage,
		Progress:               percent,
		Message:                message,
		EstimatedTimeRemaining: -1,
		Error:                  perr,
		UpdatedAt:              time.Now(),
	})
}
