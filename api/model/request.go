package model

import (
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// supportedUploadExtensions 上传接口接受的文件扩展名
// 与流水线的支持格式集合保持一致，深度校验由验证器在处理时完成
var supportedUploadExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".rtf":  true,
}

// RegisterCustomValidators 在gin的验证器上注册自定义校验规则
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("supportedfile", validateSupportedFile)
}

// validateSupportedFile 校验上传文件的扩展名是否受支持
func validateSupportedFile(fl validator.FieldLevel) bool {
	file, ok := fl.Field().Interface().(multipart.FileHeader)
	if !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	return supportedUploadExtensions[ext]
}

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required,supportedfile"` // 文件对象
	Tags string                `form:"tags" json:"tags" binding:"omitempty"`  // 文档标签，逗号分隔
}

// DocumentBatchUploadRequest 批量文档上传请求
type DocumentBatchUploadRequest struct {
	Files []*multipart.FileHeader `form:"files" binding:"required,min=1,max=20"` // 文件列表
	Tags  string                  `form:"tags" json:"tags" binding:"omitempty"`  // 公共标签
}

// DocumentStatusRequest 文档状态查询请求
type DocumentStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentChunksRequest 文档分块查询请求
type DocumentChunksRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 结束时间
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 文档状态
	FileType  string     `form:"file_type" json:"file_type" binding:"omitempty"`   // 文件类型过滤
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
}

// DocumentDeleteRequest 文档删除请求
type DocumentDeleteRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}
