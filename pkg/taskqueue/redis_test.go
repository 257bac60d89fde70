package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

// newTestQueue 基于miniredis创建队列实例
func newTestQueue(t *testing.T, redisAddr string) Queue {
	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
		Queues:      map[string]int{"default": 3},
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	return queue
}

// testPayload 返回一个文档处理任务载荷
func testPayload(documentID string) *ProcessDocumentPayload {
	return &ProcessDocumentPayload{
		DocumentID: documentID,
		FilePath:   "uploads/" + documentID + "/contract.pdf",
		FileName:   "contract.pdf",
		FileType:   "pdf",
		Metadata:   map[string]string{"department": "legal"},
	}
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	assert.NotNil(t, queue)

	err := queue.Close()
	assert.NoError(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()

	// 测试基本入队
	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-123", testPayload("doc-123"))
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskProcessDocument, task.Type)
	assert.Equal(t, "doc-123", task.DocumentID)
	assert.Equal(t, StatusPending, task.Status)
	assert.NotNil(t, task.Payload)
	assert.Equal(t, 2, task.MaxRetries)

	// 载荷能够原样取回
	var payload ProcessDocumentPayload
	err = UnmarshalPayload(task.Payload, &payload)
	assert.NoError(t, err)
	assert.Equal(t, "contract.pdf", payload.FileName)
	assert.Equal(t, "legal", payload.Metadata["department"])
}

// TestRedisQueue_GetTask_NotFound 测试获取不存在的任务
func TestRedisQueue_GetTask_NotFound(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	_, err := queue.GetTask(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_GetTasksByDocument 测试获取文档相关任务
func TestRedisQueue_GetTasksByDocument(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	documentID := "doc-456"

	// 为同一个文档入队多个任务
	for i := 0; i < 3; i++ {
		_, err := queue.Enqueue(ctx, TaskProcessDocument, documentID, testPayload(documentID))
		require.NoError(t, err)
	}

	// 获取文档相关的任务
	tasks, err := queue.GetTasksByDocument(ctx, documentID)
	assert.NoError(t, err)
	assert.Len(t, tasks, 3)

	// 验证所有任务都关联到正确的文档
	for _, task := range tasks {
		assert.Equal(t, documentID, task.DocumentID)
	}

	// 测试获取不存在文档的任务
	emptyTasks, err := queue.GetTasksByDocument(ctx, "non-existent")
	assert.NoError(t, err)
	assert.Empty(t, emptyTasks)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-789", testPayload("doc-789"))
	require.NoError(t, err)

	// 更新任务状态到处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	assert.NoError(t, err)

	// 验证状态已更新
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)

	// 更新任务状态到已完成，带结果
	result := &ProcessDocumentResult{
		DocumentID:       "doc-789",
		ChunkCount:       12,
		ContentHash:      "ab12cd34",
		ProcessingTimeMs: 840,
	}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	assert.NoError(t, err)

	// 验证状态和结果已更新
	task, err = queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	var got ProcessDocumentResult
	require.NoError(t, UnmarshalPayload(task.Result, &got))
	assert.Equal(t, 12, got.ChunkCount)
	assert.Equal(t, "ab12cd34", got.ContentHash)

	// 测试更新到失败状态
	failTaskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-789", testPayload("doc-789"))
	require.NoError(t, err)

	errorMsg := "VALIDATION_FAILED: file type not allowed"
	err = queue.UpdateTaskStatus(ctx, failTaskID, StatusFailed, nil, errorMsg)
	assert.NoError(t, err)

	// 验证失败状态
	failTask, err := queue.GetTask(ctx, failTaskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, failTask.Status)
	assert.Equal(t, errorMsg, failTask.Error)
	assert.NotNil(t, failTask.CompletedAt)
}

// TestRedisQueue_WaitForTask 测试等待任务完成
func TestRedisQueue_WaitForTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-wait", testPayload("doc-wait"))
	require.NoError(t, err)

	// 任务已是终态时立即返回
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, "")
	require.NoError(t, err)

	task, err := queue.WaitForTask(ctx, taskID, 100*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	// 任务一直未完成时超时
	pendingID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-wait", testPayload("doc-wait"))
	require.NoError(t, err)

	_, err = queue.WaitForTask(ctx, pendingID, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	documentID := "doc-delete-test"

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, documentID, testPayload(documentID))
	require.NoError(t, err)

	// 确认任务和文档关联存在
	tasks, err := queue.GetTasksByDocument(ctx, documentID)
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)

	// 删除任务
	err = queue.DeleteTask(ctx, taskID)
	assert.NoError(t, err)

	// 验证任务已被删除
	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// 验证文档关联也被删除
	tasks, err = queue.GetTasksByDocument(ctx, documentID)
	assert.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_NotifyTaskUpdate 测试任务更新通知
func TestRedisQueue_NotifyTaskUpdate(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-notify", testPayload("doc-notify"))
	require.NoError(t, err)

	err = queue.NotifyTaskUpdate(ctx, taskID)
	assert.NoError(t, err)
}

// TestNewQueue_Factory 测试队列工厂
func TestNewQueue_Factory(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.RedisAddr = redisAddr

	queue, err := NewQueue("redis", cfg)
	assert.NoError(t, err)
	assert.NotNil(t, queue)
	queue.Close()

	// 未注册的实现返回错误
	_, err = NewQueue("kafka", cfg)
	assert.Error(t, err)
}

// mockHandler 实现Handler接口，用于测试
type mockHandler struct {
	processFunc func(context.Context, *Task) error
	taskTypes   []TaskType
}

func (h *mockHandler) ProcessTask(ctx context.Context, task *Task) error {
	if h.processFunc != nil {
		return h.processFunc(ctx, task)
	}
	return nil
}

func (h *mockHandler) GetTaskTypes() []TaskType {
	return h.taskTypes
}

// TestRedisWorker 测试Redis工作者
// asynq的服务端循环需要真实Redis，本地没有时跳过
func TestRedisWorker(t *testing.T) {
	redisAddr := "localhost:6379"

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
		return
	}
	client.Close()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
		Queues:      map[string]int{"default": 3},
	}

	redisQueue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer redisQueue.Close()

	rq, ok := redisQueue.(*RedisQueue)
	require.True(t, ok, "Failed to cast to RedisQueue")

	worker := NewRedisWorker(rq, cfg)
	require.NotNil(t, worker)

	// 注册一个简单的处理器
	processed := make(chan string, 1)
	handler := &mockHandler{
		processFunc: func(ctx context.Context, task *Task) error {
			processed <- task.ID
			return nil
		},
		taskTypes: []TaskType{TaskProcessDocument},
	}

	worker.RegisterHandler(TaskProcessDocument, handler)

	require.NoError(t, worker.Start())
	defer worker.Stop()

	taskID, err := redisQueue.Enqueue(ctx, TaskProcessDocument, "doc-worker-test", testPayload("doc-worker-test"))
	require.NoError(t, err)

	// 等待处理器被调用
	select {
	case got := <-processed:
		assert.Equal(t, taskID, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Worker did not process the task in time")
	}

	// 任务终态会被回写到Redis
	task, err := redisQueue.WaitForTask(ctx, taskID, 5*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}
