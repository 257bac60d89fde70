package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	DocumentID string `json:"document_id"` // 文档ID
	FileName   string `json:"filename"`    // 文件名
	FileType   string `json:"file_type"`   // 文件类型
	Status     string `json:"status"`      // 文档状态
}

// DocumentBatchUploadResponse 批量上传响应
// 逐项结果与请求文件顺序一致，单项失败不影响其他项
type DocumentBatchUploadResponse struct {
	Total     int                       `json:"total"`     // 文件总数
	Succeeded int                       `json:"succeeded"` // 上传成功数
	Failed    int                       `json:"failed"`    // 上传失败数
	Items     []DocumentBatchUploadItem `json:"items"`     // 逐项结果
}

// DocumentBatchUploadItem 批量上传的单项结果
type DocumentBatchUploadItem struct {
	FileName   string `json:"filename"`              // 文件名
	DocumentID string `json:"document_id,omitempty"` // 文档ID（成功时）
	Error      string `json:"error,omitempty"`       // 错误信息（失败时）
}

// DocumentStatusResponse 文档状态查询响应
type DocumentStatusResponse struct {
	DocumentID             string `json:"document_id"`                        // 文档ID
	Status                 string `json:"status"`                             // 处理状态
	Stage                  string `json:"stage"`                              // 当前处理阶段
	Progress               int    `json:"progress"`                           // 进度百分比（0-100）
	Message                string `json:"message,omitempty"`                  // 进度描述
	EstimatedTimeRemaining int    `json:"estimated_time_remaining,omitempty"` // 预估剩余秒数
	FileName               string `json:"filename"`                           // 文件名
	ChunkCount             int    `json:"chunk_count,omitempty"`              // 分块数量（处理完成后）
	ContentHash            string `json:"content_hash,omitempty"`             // 内容哈希
	Error                  string `json:"error,omitempty"`                    // 错误信息（如果有）
	ErrorCode              string `json:"error_code,omitempty"`               // 错误码（如果有）
	Retryable              bool   `json:"retryable"`                          // 失败是否可重试
	CreatedAt              string `json:"created_at"`                         // 创建时间
	UpdatedAt              string `json:"updated_at"`                         // 更新时间
}

// ChunkInfo 分块信息
type ChunkInfo struct {
	Index         int             `json:"index"`              // 分块索引
	Content       string          `json:"content"`            // 分块内容
	TokenCount    int             `json:"token_count"`        // 估算token数量
	StartPosition int             `json:"start_position"`     // 起始位置
	EndPosition   int             `json:"end_position"`       // 结束位置
	SemanticType  string          `json:"semantic_type"`      // 主导语义类型
	Metadata      json.RawMessage `json:"metadata,omitempty"` // 分块元数据
}

// DocumentChunksResponse 文档分块查询响应
type DocumentChunksResponse struct {
	DocumentID string      `json:"document_id"` // 文档ID
	ChunkCount int         `json:"chunk_count"` // 分块数量
	Chunks     []ChunkInfo `json:"chunks"`      // 分块列表
}

// ConvertToChunkInfos 将数据库分块记录转换为响应结构
func ConvertToChunkInfos(chunks []*models.DocumentChunk) []ChunkInfo {
	if len(chunks) == 0 {
		return []ChunkInfo{}
	}

	infos := make([]ChunkInfo, len(chunks))
	for i, c := range chunks {
		infos[i] = ChunkInfo{
			Index:         c.ChunkIndex,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			StartPosition: c.StartPosition,
			EndPosition:   c.EndPosition,
			SemanticType:  c.SemanticType,
			Metadata:      json.RawMessage(c.Metadata),
		}
	}
	return infos
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	DocumentID  string          `json:"document_id"`            // 文档ID
	FileName    string          `json:"filename"`               // 文件名
	FileType    string          `json:"file_type"`              // 文件类型
	FileSize    int64           `json:"file_size"`              // 文件大小
	Status      string          `json:"status"`                 // 状态
	Stage       string          `json:"stage"`                  // 当前阶段
	ContentHash string          `json:"content_hash,omitempty"` // 内容哈希
	Tags        string          `json:"tags,omitempty"`         // 标签
	UploadedAt  time.Time       `json:"uploaded_at"`            // 上传时间
	ChunkCount  int             `json:"chunk_count"`            // 分块数量
	Metadata    json.RawMessage `json:"metadata,omitempty"`     // 提取的文档元数据
}

// ConvertToDocumentInfo 将数据库文档记录转换为响应结构
func ConvertToDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		FileType:    doc.FileType,
		FileSize:    doc.FileSize,
		Status:      string(doc.Status),
		Stage:       string(doc.CurrentStage),
		ContentHash: doc.ContentHash,
		Tags:        doc.Tags,
		UploadedAt:  doc.UploadedAt,
		ChunkCount:  doc.ChunkCount,
		Metadata:    json.RawMessage(doc.Metadata),
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success    bool   `json:"success"`     // 是否成功
	DocumentID string `json:"document_id"` // 文档ID
}
