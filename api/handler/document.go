package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fyerfyer/doc-audit-system/api/middleware"
	"github.com/fyerfyer/doc-audit-system/api/model"
	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/fyerfyer/doc-audit-system/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档审核服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid document upload request")

		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数，仅支持 .pdf, .docx, .doc, .txt, .rtf",
		))
		return
	}

	content, err := readUploadedFile(req.File)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.File.Filename,
		}).Error("Failed to read uploaded file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法读取上传的文件",
		))
		return
	}

	doc, err := h.documentService.UploadDocument(c.Request.Context(), content, req.File.Filename, req.Tags)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.File.Filename,
		}).Error("Failed to upload document")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"文档上传失败",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
		"size":     doc.FileSize,
	}).Info("Document uploaded successfully")

	resp := model.DocumentUploadResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
		Status:     string(doc.Status),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// UploadDocumentBatch 批量上传文档
// POST /api/documents/batch
// 逐个上传，单个文件失败不影响其他文件
func (h *DocumentHandler) UploadDocumentBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的表单数据"))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "未提供文件"))
		return
	}

	tags := c.PostForm("tags")

	resp := model.DocumentBatchUploadResponse{
		Total: len(files),
		Items: make([]model.DocumentBatchUploadItem, 0, len(files)),
	}

	for _, file := range files {
		item := model.DocumentBatchUploadItem{FileName: file.Filename}

		content, err := readUploadedFile(file)
		if err != nil {
			item.Error = "无法读取上传的文件"
			resp.Failed++
			resp.Items = append(resp.Items, item)
			continue
		}

		doc, err := h.documentService.UploadDocument(c.Request.Context(), content, file.Filename, tags)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":    err.Error(),
				"filename": file.Filename,
			}).Warn("Batch item upload failed")

			item.Error = err.Error()
			resp.Failed++
			resp.Items = append(resp.Items, item)
			continue
		}

		item.DocumentID = doc.ID
		resp.Succeeded++
		resp.Items = append(resp.Items, item)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocumentStatus 获取文档处理状态
// GET /api/documents/:id/status
// 处理中的文档优先返回共享进度存储里的实时进度，缺失时回退到耗时估算
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var req model.DocumentStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	doc, err := h.documentService.GetDocumentInfo(c.Request.Context(), req.ID)
	if err != nil {
		h.documentNotFound(c, req.ID, err)
		return
	}

	progress, err := h.documentService.GetDocumentProgress(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"doc_id": req.ID,
		}).Warn("Failed to get document progress")
		// 进度获取失败时仍返回文档状态
	}

	resp := model.DocumentStatusResponse{
		DocumentID:             doc.ID,
		Status:                 string(doc.Status),
		Stage:                  string(progress.Stage),
		Progress:               progress.Progress,
		Message:                progress.Message,
		EstimatedTimeRemaining: progress.EstimatedTimeRemaining,
		FileName:               doc.FileName,
		ChunkCount:             doc.ChunkCount,
		ContentHash:            doc.ContentHash,
		Error:                  doc.Error,
		ErrorCode:              doc.ErrorCode,
		Retryable:              doc.Retryable,
		CreatedAt:              doc.UploadedAt.Format(time.RFC3339),
		UpdatedAt:              doc.UpdatedAt.Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocumentChunks 获取文档分块结果
// GET /api/documents/:id/chunks
func (h *DocumentHandler) GetDocumentChunks(c *gin.Context) {
	var req model.DocumentChunksRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	chunks, err := h.documentService.GetDocumentChunks(c.Request.Context(), req.ID)
	if err != nil {
		h.documentNotFound(c, req.ID, err)
		return
	}

	resp := model.DocumentChunksResponse{
		DocumentID: req.ID,
		ChunkCount: len(chunks),
		Chunks:     model.ConvertToChunkInfos(chunks),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	// 构建过滤条件
	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.FileType != "" {
		filters["file_type"] = req.FileType
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档列表失败",
		))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.ConvertToDocumentInfo(doc)
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			h.documentNotFound(c, req.ID, err)
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"doc_id": req.ID,
		}).Error("Failed to delete document")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除文档失败",
		))
		return
	}

	h.logger.WithField("doc_id", req.ID).Info("Document deleted successfully")

	resp := model.DocumentDeleteResponse{
		Success:    true,
		DocumentID: req.ID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// documentNotFound 返回文档不存在的错误响应
func (h *DocumentHandler) documentNotFound(c *gin.Context, docID string, err error) {
	h.logger.WithFields(logrus.Fields{
		"error":  err.Error(),
		"doc_id": docID,
	}).Warn("Document not found")

	c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文档"))
}

// readUploadedFile 读取上传文件的全部内容
func readUploadedFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
