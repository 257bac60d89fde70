package document

import (
	"errors"
	"fmt"
)

// 处理流水线的错误码
// 内容类错误不可重试：相同的字节重新处理不会改变结果
const (
	// ErrCodeValidationFailed 文件验证失败
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	// ErrCodeUnknownFileType 无法识别文件类型
	ErrCodeUnknownFileType = "UNKNOWN_FILE_TYPE"
	// ErrCodeFileTypeDetection 文件类型检测失败
	ErrCodeFileTypeDetection = "FILE_TYPE_DETECTION_FAILED"
	// ErrCodePDFExtraction PDF文本提取失败
	ErrCodePDFExtraction = "PDF_EXTRACTION_FAILED"
	// ErrCodeWordExtraction Word文本提取失败
	ErrCodeWordExtraction = "WORD_EXTRACTION_FAILED"
	// ErrCodeTextExtraction 纯文本提取失败
	ErrCodeTextExtraction = "TEXT_EXTRACTION_FAILED"
	// ErrCodeRTFExtraction RTF文本提取失败
	ErrCodeRTFExtraction = "RTF_EXTRACTION_FAILED"
	// ErrCodeEmptyDocument 提取结果为空
	ErrCodeEmptyDocument = "EMPTY_DOCUMENT"
	// ErrCodeChunkingFailed 文本分块失败
	ErrCodeChunkingFailed = "CHUNKING_FAILED"
	// ErrCodeEmptyText 分块输入文本为空
	ErrCodeEmptyText = "EMPTY_TEXT"
	// ErrCodeProcessingFailed 处理失败（兜底错误码）
	ErrCodeProcessingFailed = "PROCESSING_FAILED"

	// ErrCodeNetworkError 网络错误
	ErrCodeNetworkError = "NETWORK_ERROR"
	// ErrCodeTimeout 处理超时
	ErrCodeTimeout = "TIMEOUT"
	// ErrCodeRateLimited 触发限流
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeTemporaryFailure 临时性故障
	ErrCodeTemporaryFailure = "TEMPORARY_FAILURE"
)

// retryableCodes 可重试错误码的固定白名单
// 只有基础设施类的故障才可重试
var retryableCodes = map[string]bool{
	ErrCodeNetworkError:     true,
	ErrCodeTimeout:          true,
	ErrCodeRateLimited:      true,
	ErrCodeTemporaryFailure: true,
}

// IsRetryableCode 判断错误码是否在可重试白名单中
func IsRetryableCode(code string) bool {
	return retryableCodes[code]
}

// ProcessingError 处理流水线的统一错误结构
// 在失败点构造，附加到处理结果或进度事件上，不携带调用栈信息
type ProcessingError struct {
	Code      string                 `json:"code"`              // 错误码
	Message   string                 `json:"message"`           // 人类可读的错误信息
	Details   map[string]interface{} `json:"details,omitempty"` // 额外的上下文信息
	Retryable bool                   `json:"retryable"`         // 是否可重试
	cause     error                  // 原始错误（如果有）
}

// Error 实现error接口
func (e *ProcessingError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，支持errors.Is/As链
func (e *ProcessingError) Unwrap() error {
	return e.cause
}

// WithDetail 添加上下文信息，返回自身方便链式调用
func (e *ProcessingError) WithDetail(key string, value interface{}) *ProcessingError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewProcessingError 创建处理错误
// Retryable标志由错误码白名单决定
func NewProcessingError(code, message string) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
	}
}

// WrapProcessingError 包装原始错误为处理错误
func WrapProcessingError(code, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
		cause:     cause,
	}
}

// AsProcessingError 将任意错误规范化为ProcessingError
// 非ProcessingError的错误被包装为PROCESSING_FAILED
func AsProcessingError(err error) *ProcessingError {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe
	}
	return WrapProcessingError(ErrCodeProcessingFailed, "document processing failed", err)
}
