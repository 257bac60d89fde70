package services

import (
	"context"
	"fmt"

	"github.com/fyerfyer/doc-audit-system/pkg/taskqueue"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// DocumentTaskHandler 文档处理任务的队列处理器
// 工作者收到document:process任务后，在工作者进程内执行完整流水线
type DocumentTaskHandler struct {
	service *DocumentService
	queue   taskqueue.Queue
	logger  *logrus.Logger
}

// NewDocumentTaskHandler 创建文档处理任务处理器
func NewDocumentTaskHandler(service *DocumentService, queue taskqueue.Queue, logger *logrus.Logger) *DocumentTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentTaskHandler{
		service: service,
		queue:   queue,
		logger:  logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *DocumentTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskProcessDocument}
}

// ProcessTask 处理文档处理任务
// 返回error时工作者将任务标记为失败，asynq根据重试配置决定是否重试；
// 不可重试的失败不返回error，避免对相同字节做无意义的重试
func (h *DocumentTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ProcessDocumentPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"doc_id":  payload.DocumentID,
	}).Info("Processing document task")

	processErr := h.service.ExecuteProcessing(ctx, payload.DocumentID)

	// 从文档记录组装任务结果
	result := taskqueue.ProcessDocumentResult{DocumentID: payload.DocumentID}
	if doc, err := h.service.GetDocumentInfo(ctx, payload.DocumentID); err == nil {
		result.ChunkCount = doc.ChunkCount
		result.ContentHash = doc.ContentHash
		result.ErrorCode = doc.ErrorCode
		result.Retryable = doc.Retryable
		if processErr != nil {
			result.Error = processErr.Error()
		}
	}

	if h.queue != nil {
		if err := h.queue.UpdateTaskStatus(ctx, task.ID, task.Status, result, ""); err != nil {
			h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to attach task result")
		}
	}

	if processErr != nil {
		if !result.Retryable {
			// 内容类失败是终态，阻止asynq对相同字节重试
			h.logger.WithFields(logrus.Fields{
				"task_id":    task.ID,
				"doc_id":     payload.DocumentID,
				"error_code": result.ErrorCode,
			}).Warn("Document processing failed with non-retryable error")
			return fmt.Errorf("%v: %w", processErr, asynq.SkipRetry)
		}
		return processErr
	}

	return nil
}
