package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/models"
	"github.com/fyerfyer/doc-audit-system/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupStatusManager 创建基于内存数据库的状态管理器
func setupStatusManager(t *testing.T) (*DocumentStatusManager, repository.DocumentRepository) {
	t.Helper()

	dbName := fmt.Sprintf("file:statusdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.DocumentChunk{}))

	repo := repository.NewDocumentRepositoryWithDB(db)
	return NewDocumentStatusManager(repo, nil), repo
}

// uploadTestDocument 创建一个已上传状态的测试文档
func uploadTestDocument(t *testing.T, m *DocumentStatusManager, id string) *models.Document {
	t.Helper()

	doc := &models.Document{
		ID:       id,
		FileName: "report.pdf",
		FileType: "pdf",
		FilePath: id + "/report.pdf",
		FileSize: 4096,
	}
	require.NoError(t, m.MarkAsUploaded(context.Background(), doc))
	return doc
}

// TestStatusLifecycle 测试完整的状态生命周期
func TestStatusLifecycle(t *testing.T) {
	manager, repo := setupStatusManager(t)
	ctx := context.Background()

	doc := uploadTestDocument(t, manager, "doc-lifecycle")

	// uploaded -> processing
	require.NoError(t, manager.MarkAsProcessing(ctx, doc.ID))
	status, err := manager.GetStatus(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, status)

	// 处理中可以更新阶段
	require.NoError(t, manager.UpdateStage(ctx, doc.ID, models.StageExtracting, 30))
	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageExtracting, saved.CurrentStage)
	assert.Equal(t, 30, saved.Progress)

	// processing -> completed
	require.NoError(t, manager.MarkAsCompleted(ctx, doc.ID, 7))
	saved, err = repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, saved.Status)
	assert.Equal(t, models.StageCompleted, saved.CurrentStage)
	assert.Equal(t, 100, saved.Progress)
	assert.Equal(t, 7, saved.ChunkCount)
}

// TestStatusFailureAndRetry 失败状态携带错误分类且允许重试
func TestStatusFailureAndRetry(t *testing.T) {
	manager, repo := setupStatusManager(t)
	ctx := context.Background()

	doc := uploadTestDocument(t, manager, "doc-retry")
	require.NoError(t, manager.MarkAsProcessing(ctx, doc.ID))
	require.NoError(t, manager.MarkAsFailed(ctx, doc.ID, "TEMPORARY_FAILURE", "storage unavailable", true))

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, saved.Status)
	assert.Equal(t, "TEMPORARY_FAILURE", saved.ErrorCode)
	assert.True(t, saved.Retryable)

	// 失败的文档可以重新进入处理
	require.NoError(t, manager.MarkAsProcessing(ctx, doc.ID), "失败后应允许重试")
	status, err := manager.GetStatus(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, status)
}

// TestStatusInvalidTransitions 非法状态转换应被拒绝
func TestStatusInvalidTransitions(t *testing.T) {
	manager, _ := setupStatusManager(t)
	ctx := context.Background()

	t.Run("completed document cannot reprocess", func(t *testing.T) {
		doc := uploadTestDocument(t, manager, "doc-done")
		require.NoError(t, manager.MarkAsProcessing(ctx, doc.ID))
		require.NoError(t, manager.MarkAsCompleted(ctx, doc.ID, 3))

		err := manager.MarkAsProcessing(ctx, doc.ID)
		assert.Error(t, err, "完成的文档不应重新进入处理")
	})

	t.Run("stage update requires processing state", func(t *testing.T) {
		doc := uploadTestDocument(t, manager, "doc-early")
		err := manager.UpdateStage(ctx, doc.ID, models.StageChunking, 50)
		assert.Error(t, err, "未进入处理的文档不应更新阶段")
	})

	t.Run("unknown document", func(t *testing.T) {
		err := manager.MarkAsProcessing(ctx, "ghost-doc")
		assert.Error(t, err)
	})
}

// TestValidateStateTransition 测试状态转换表
func TestValidateStateTransition(t *testing.T) {
	manager, _ := setupStatusManager(t)

	valid := []struct{ from, to models.DocumentStatus }{
		{models.DocStatusUploaded, models.DocStatusProcessing},
		{models.DocStatusUploaded, models.DocStatusFailed},
		{models.DocStatusProcessing, models.DocStatusCompleted},
		{models.DocStatusProcessing, models.DocStatusFailed},
		{models.DocStatusFailed, models.DocStatusProcessing},
	}
	for _, tc := range valid {
		assert.NoError(t, manager.ValidateStateTransition(tc.from, tc.to),
			"%s -> %s 应是合法转换", tc.from, tc.to)
	}

	invalid := []struct{ from, to models.DocumentStatus }{
		{models.DocStatusCompleted, models.DocStatusProcessing},
		{models.DocStatusCompleted, models.DocStatusFailed},
		{models.DocStatusFailed, models.DocStatusUploaded},
		{models.DocStatusProcessing, models.DocStatusUploaded},
	}
	for _, tc := range invalid {
		assert.Error(t, manager.ValidateStateTransition(tc.from, tc.to),
			"%s -> %s 应是非法转换", tc.from, tc.to)
	}
}

// TestStatusDelete 删除状态记录
func TestStatusDelete(t *testing.T) {
	manager, repo := setupStatusManager(t)
	ctx := context.Background()

	doc := uploadTestDocument(t, manager, "doc-gone")
	require.NoError(t, manager.DeleteDocument(ctx, doc.ID))

	_, err := repo.GetByID(doc.ID)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}
